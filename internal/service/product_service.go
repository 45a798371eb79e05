package service

import (
	"context"
	"time"

	"shop-core/internal/domain"
	"shop-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the writable catalog fields of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// ProductService defines catalog management. Writes are restricted to
// administrators by the transport layer.
type ProductService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
}

type productService struct {
	uow    repository.UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(uow repository.UnitOfWork, logger *zap.Logger) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{
		uow:    uow,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	now := s.now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		return repos.Products.Create(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.String("product_id", product.ID.String()), zap.Int("stock", product.Stock))
	return product, nil
}

// UpdateProduct replaces the catalog fields of a product. The row is locked
// first so an administrative restock cannot interleave with an order commit.
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	var product *domain.Product

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Products.LockForUpdate(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return domain.ErrProductNotFound
		}

		product = locked[0]
		product.Name = input.Name
		product.Description = input.Description
		product.Price = input.Price
		product.Stock = input.Stock
		product.UpdatedAt = s.now()
		if err := product.Validate(); err != nil {
			return err
		}

		return repos.Products.Update(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product updated", zap.String("product_id", product.ID.String()), zap.Int("stock", product.Stock))
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		return repos.Products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product *domain.Product
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		product, err = repos.Products.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns one page of the catalog with the total match count
func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	page := Page{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset

	var (
		products []*domain.Product
		total    int
	)
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		products, total, err = repos.Products.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}
