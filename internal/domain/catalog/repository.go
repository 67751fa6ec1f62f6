package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// Lookup and concurrency errors surfaced by catalog stores.
var (
	// ErrNotFound is returned when a requested product or SKU does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a versioned stock write lost the
	// race against a concurrent writer. Callers retry from a fresh read.
	ErrVersionConflict = errors.New("concurrent stock modification")
)

// Repository defines catalog persistence. Reads return the SKU together with
// its current version token; every ledger mutation is a version-checked
// read-modify-write that fails with ErrVersionConflict when the row changed
// underneath it. Stock fields are never written directly — all mutations go
// through these operations to preserve reserved <= stock.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	CreateSku(ctx context.Context, s *Sku) error
	GetSku(ctx context.Context, id string) (*Sku, error)
	GetSkuByCode(ctx context.Context, code string) (*Sku, error)
	UpdateSku(ctx context.Context, s *Sku) error

	// ReserveStock places a hold on qty units of the SKU.
	ReserveStock(ctx context.Context, skuID string, qty int) error
	// ReleaseReservedStock returns qty held units to the available pool.
	ReleaseReservedStock(ctx context.Context, skuID string, qty int) error
	// ConsumeReservedStock spends qty held units on fulfillment.
	ConsumeReservedStock(ctx context.Context, skuID string, qty int) error
	// SetStock restocks the SKU to an absolute quantity.
	SetStock(ctx context.Context, skuID string, qty int) error
}
