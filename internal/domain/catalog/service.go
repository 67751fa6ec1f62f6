package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/money"
)

// Number of times a versioned stock write is retried before the conflict is
// surfaced to the caller.
const restockRetries = 3

// Service provides catalog management on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateProductRequest holds the input for creating a product.
type CreateProductRequest struct {
	Name        string
	Description string
	Category    string
}

// CreateProduct registers a new active product.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	p := &Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Active:      true,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// CreateSkuRequest holds the input for creating a SKU under a product.
type CreateSkuRequest struct {
	ProductID   string
	Code        string
	Name        string
	Description string
	Price       money.Money
	TrackStock  bool
}

// CreateSku registers a new active SKU with zero stock.
func (s *Service) CreateSku(ctx context.Context, req CreateSkuRequest) (*Sku, error) {
	p, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	sku := &Sku{
		ID:          uuid.New().String(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       req.Price,
		TrackStock:  req.TrackStock,
		Active:      true,
	}
	if err := s.repo.CreateSku(ctx, sku); err != nil {
		return nil, errors.Wrap(err, "create sku")
	}
	return sku, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetSku returns a SKU by id.
func (s *Service) GetSku(ctx context.Context, id string) (*Sku, error) {
	return s.repo.GetSku(ctx, id)
}

// GetSkuByCode returns a SKU by its unique code.
func (s *Service) GetSkuByCode(ctx context.Context, code string) (*Sku, error) {
	return s.repo.GetSkuByCode(ctx, code)
}

// ListProducts returns the full product catalog.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// UpdatePrice sets a new price on the SKU.
func (s *Service) UpdatePrice(ctx context.Context, skuID string, price money.Money) (*Sku, error) {
	sku, err := s.repo.GetSku(ctx, skuID)
	if err != nil {
		return nil, errors.Wrap(err, "get sku")
	}
	sku.Price = price
	if err := s.repo.UpdateSku(ctx, sku); err != nil {
		return nil, errors.Wrap(err, "update sku")
	}
	return sku, nil
}

// SetSkuActive activates or deactivates a SKU.
func (s *Service) SetSkuActive(ctx context.Context, skuID string, active bool) (*Sku, error) {
	sku, err := s.repo.GetSku(ctx, skuID)
	if err != nil {
		return nil, errors.Wrap(err, "get sku")
	}
	sku.Active = active
	if err := s.repo.UpdateSku(ctx, sku); err != nil {
		return nil, errors.Wrap(err, "update sku")
	}
	return sku, nil
}

// Restock sets the SKU's absolute stock quantity through the versioned
// ledger write, retrying a bounded number of times on conflicts with
// concurrent checkouts.
func (s *Service) Restock(ctx context.Context, skuID string, quantity int) (*Sku, error) {
	var lastErr error
	for range restockRetries {
		err := s.repo.SetStock(ctx, skuID, quantity)
		if err == nil {
			return s.repo.GetSku(ctx, skuID)
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
