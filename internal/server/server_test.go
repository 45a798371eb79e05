package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop-core/internal/config"
	"shop-core/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "development"},
		JWT:    config.JWTConfig{Secret: "test-secret", AccessExpiry: 60, RefreshExpiry: 1},
		Throttle: config.ThrottleConfig{
			User:        "500/day",
			Anon:        "100/day",
			OrderUser:   "20/day",
			PaymentUser: "5/hour",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv, err := NewServer(cfg, zap.NewNop(), database.NewFromDB(db), client)
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		srv.Close()
	})

	return srv, mock, mr
}

func do(srv *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w
}

func signToken(t *testing.T, secret string, isAdmin bool) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  uuid.NewString(),
		"is_admin": isAdmin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, mock, _ := newTestServer(t, testConfig())
		mock.ExpectPing()

		w := do(srv, http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "up", body["redis"])
	})

	t.Run("database down", func(t *testing.T) {
		srv, mock, _ := newTestServer(t, testConfig())
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w := do(srv, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("redis down stays healthy", func(t *testing.T) {
		srv, mock, mr := newTestServer(t, testConfig())
		mock.ExpectPing()
		mr.Close()

		w := do(srv, http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "down", body["redis"])
	})
}

func TestNewServer_RejectsInvalidThrottleRate(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.OrderUser = "twenty per day"

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewServer(cfg, zap.NewNop(), database.NewFromDB(db), redis.NewClient(&redis.Options{}))

	assert.ErrorContains(t, err, "order_user")
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	for _, path := range []string{"/api/cart", "/api/orders", "/api/users/profile"} {
		assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, path, "").Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodPost, "/api/orders", "").Code)
}

func TestRoutes_CatalogWritesRequireAdmin(t *testing.T) {
	cfg := testConfig()
	srv, _, _ := newTestServer(t, cfg)

	w := do(srv, http.MethodPost, "/api/products", signToken(t, cfg.JWT.Secret, false))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutes_AnonymousThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.Anon = "1/day"
	srv, _, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, "/api/orders", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(srv, http.MethodGet, "/api/orders", "").Code)
}

func TestRoutes_OrderThrottleIsPerUser(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.PaymentUser = "1/hour"
	srv, _, mr := newTestServer(t, cfg)
	token := signToken(t, cfg.JWT.Secret, false)

	// Malformed ids never reach the database
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodPost, "/api/orders/not-an-id/pay", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(srv, http.MethodPost, "/api/orders/not-an-id/pay", token).Code)

	other := signToken(t, cfg.JWT.Secret, false)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodPost, "/api/orders/not-an-id/pay", other).Code)

	assert.NotEmpty(t, mr.Keys())
}

func TestRoutes_OrderCreateThrottleKeysOnTheUser(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.OrderUser = "1/day"
	srv, _, mr := newTestServer(t, cfg)
	token := signToken(t, cfg.JWT.Secret, false)

	assert.NotEqual(t, http.StatusTooManyRequests, do(srv, http.MethodPost, "/api/orders", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(srv, http.MethodPost, "/api/orders", token).Code)

	var orderKeys []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "throttle:order") {
			orderKeys = append(orderKeys, key)
		}
	}
	require.Len(t, orderKeys, 1)
	assert.True(t, strings.HasPrefix(orderKeys[0], "throttle:order_user:user:"))
}
