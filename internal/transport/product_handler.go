package transport

import (
	"net/http"
	"strings"
	"time"

	"shop-core/internal/domain"
	"shop-core/internal/middleware"
	"shop-core/internal/repository"
	"shop-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload for creating or replacing a product
type ProductRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required,money"`
	Stock       *int   `json:"stock" validate:"required,gte=0"`
}

// ProductResponse is the public view of a catalog entry
type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProductHandler serves the catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers the catalog routes. Reads are public, writes
// require an administrator.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

// ListProducts handles GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, ok := productFilterFromQuery(w, r)
	if !ok {
		return
	}

	products, total, err := h.productService.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	results := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		results = append(results, newProductResponse(p))
	}

	page := service.Page{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	middleware.RespondWithJSON(w, http.StatusOK, newPageResponse(results, total, page))
}

// GetProduct handles GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// CreateProduct handles POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), input)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

// UpdateProduct handles PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), id, input)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(r.Context(), id); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var req ProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return service.ProductInput{}, false
	}

	// already checked by the money validator
	price, _ := decimal.NewFromString(req.Price)

	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       *req.Stock,
	}, true
}

// productFilterFromQuery builds a catalog filter from the query string.
// ordering accepts a field name with an optional leading "-" for descending.
func productFilterFromQuery(w http.ResponseWriter, r *http.Request) (repository.ProductFilter, bool) {
	query := r.URL.Query()
	page := pageFromQuery(r)

	filter := repository.ProductFilter{
		Name:   query.Get("name"),
		Search: query.Get("search"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}

	for param, target := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "invalid price filter", map[string]interface{}{
				"field": param,
			})
			return repository.ProductFilter{}, false
		}
		*target = &value
	}

	if ordering := query.Get("ordering"); ordering != "" {
		filter.SortOrder = repository.SortOrderAsc
		if strings.HasPrefix(ordering, "-") {
			filter.SortOrder = repository.SortOrderDesc
		}
		filter.SortBy = strings.TrimPrefix(ordering, "-")
	}

	return filter, true
}
