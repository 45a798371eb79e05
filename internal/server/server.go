package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shop-core/internal/config"
	"shop-core/internal/database"
	custommiddleware "shop-core/internal/middleware"
	"shop-core/internal/repository"
	"shop-core/internal/service"
	"shop-core/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// throttles holds one limiter per configured scope
type throttles struct {
	global  func(http.Handler) http.Handler
	order   func(http.Handler) http.Handler
	payment func(http.Handler) http.Handler
}

func newThrottles(cfg config.ThrottleConfig, client *redis.Client, logger *zap.Logger) (throttles, error) {
	scopes := []struct {
		name string
		rate string
	}{
		{"user", cfg.User},
		{"anon", cfg.Anon},
		{"order_user", cfg.OrderUser},
		{"payment_user", cfg.PaymentUser},
	}

	parsed := make(map[string]custommiddleware.RateLimitConfig, len(scopes))
	for _, scope := range scopes {
		rl, err := custommiddleware.NewRateLimitConfig(scope.name, scope.rate)
		if err != nil {
			return throttles{}, err
		}
		parsed[scope.name] = rl
	}

	return throttles{
		global:  custommiddleware.ScopedRateLimitMiddleware(client, parsed["user"], parsed["anon"], logger),
		order:   custommiddleware.RateLimitMiddleware(client, parsed["order_user"], logger),
		payment: custommiddleware.RateLimitMiddleware(client, parsed["payment_user"], logger),
	}, nil
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	limits, err := newThrottles(cfg.Throttle, redisClient, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack(requestTimeout)...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server))
	router.Use(custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger))

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	router.Get("/health", s.health)

	// Every request below shares one connection pool; all ordering and
	// inventory writes go through the unit of work
	txOpts := database.DefaultTxOptions()
	txOpts.MaxRetries = cfg.Database.TxMaxRetries
	uow := repository.NewUnitOfWork(db.DB(), txOpts)

	userService := service.NewUserService(
		repository.NewUserRepository(db.DB()),
		repository.NewRefreshTokenRepository(db.DB()),
		cfg.JWT,
	)
	productService := service.NewProductService(uow, logger)
	cartService := service.NewCartService(uow)
	orderService := service.NewOrderService(uow, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	router.Group(func(r chi.Router) {
		r.Use(limits.global)

		transport.NewUserHandler(userService, logger).RegisterRoutes(r, authMiddleware)
		transport.NewProductHandler(productService, logger).RegisterRoutes(r, authMiddleware)
		transport.NewCartHandler(cartService, logger).RegisterRoutes(r, authMiddleware)
		transport.NewOrderHandler(orderService, logger).RegisterRoutes(r, authMiddleware, transport.OrderRateLimits{
			Create: limits.order,
			Pay:    limits.payment,
		})
	})

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
	}

	return s, nil
}

// health reports database and Redis reachability. A database outage makes
// the instance unhealthy. Redis only backs throttling, which fails open.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	dbHealth := s.db.Health(r.Context())
	body["database"] = dbHealth
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	body["redis"] = "up"
	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis health check failed", zap.Error(err))
		body["redis"] = "down"
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
			return err
		}
	}

	return nil
}
