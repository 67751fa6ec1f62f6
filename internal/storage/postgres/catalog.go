package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
)

const (
	createProductSQL = `INSERT INTO products (id, name, description, category, active)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at`

	getProductSQL = `SELECT id, name, description, category, active, created_at, updated_at
	FROM products WHERE id = $1`

	listProductsSQL = `SELECT id, name, description, category, active, created_at, updated_at
	FROM products ORDER BY created_at`

	createSkuSQL = `INSERT INTO skus
	(id, code, name, description, product_id, price, currency, stock, reserved, track_stock, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING version, created_at, updated_at`

	selectSkuSQL = `SELECT s.id, s.code, s.name, s.description, s.product_id, p.name,
	s.price, s.currency, s.stock, s.reserved, s.track_stock, s.active, s.version,
	s.created_at, s.updated_at
	FROM skus s JOIN products p ON p.id = s.product_id`

	getSkuSQL       = selectSkuSQL + ` WHERE s.id = $1`
	getSkuByCodeSQL = selectSkuSQL + ` WHERE s.code = $1`

	// Non-stock fields only: stock and reserved move exclusively through
	// the ledger statement below.
	updateSkuSQL = `UPDATE skus
	SET name = $2, description = $3, price = $4, currency = $5, active = $6,
	    version = version + 1, updated_at = now()
	WHERE id = $1 AND version = $7`

	updateStockSQL = `UPDATE skus
	SET stock = $2, reserved = $3, version = version + 1, updated_at = now()
	WHERE id = $1 AND version = $4`

	skuExistsSQL = `SELECT EXISTS (SELECT 1 FROM skus WHERE id = $1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	q querier
}

// NewCatalogRepository returns a CatalogRepository running on the given
// pool or transaction.
func NewCatalogRepository(q querier) *CatalogRepository {
	return &CatalogRepository{q: q}
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	err := r.q.QueryRow(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.q.QueryRow(ctx, getProductSQL, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) CreateSku(ctx context.Context, s *catalog.Sku) error {
	err := r.q.QueryRow(ctx, createSkuSQL,
		s.ID, s.Code, s.Name, s.Description, s.ProductID,
		s.Price.Amount(), s.Price.Currency(),
		s.Stock, s.Reserved, s.TrackStock, s.Active,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "create sku %q", s.Code)
	}
	return nil
}

func (r *CatalogRepository) GetSku(ctx context.Context, id string) (*catalog.Sku, error) {
	s, err := r.scanSku(r.q.QueryRow(ctx, getSkuSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get sku %q", id)
	}
	return s, nil
}

func (r *CatalogRepository) GetSkuByCode(ctx context.Context, code string) (*catalog.Sku, error) {
	s, err := r.scanSku(r.q.QueryRow(ctx, getSkuByCodeSQL, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get sku by code %q", code)
	}
	return s, nil
}

func (r *CatalogRepository) UpdateSku(ctx context.Context, s *catalog.Sku) error {
	tag, err := r.q.Exec(ctx, updateSkuSQL,
		s.ID, s.Name, s.Description, s.Price.Amount(), s.Price.Currency(), s.Active, s.Version,
	)
	if err != nil {
		return errors.Wrapf(err, "update sku %q", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, s.ID)
	}
	s.Version++
	return nil
}

func (r *CatalogRepository) ReserveStock(ctx context.Context, skuID string, qty int) error {
	return r.mutateStock(ctx, skuID, func(s *catalog.Sku) error { return s.Reserve(qty) })
}

func (r *CatalogRepository) ReleaseReservedStock(ctx context.Context, skuID string, qty int) error {
	return r.mutateStock(ctx, skuID, func(s *catalog.Sku) error { return s.Release(qty) })
}

func (r *CatalogRepository) ConsumeReservedStock(ctx context.Context, skuID string, qty int) error {
	return r.mutateStock(ctx, skuID, func(s *catalog.Sku) error { return s.Consume(qty) })
}

func (r *CatalogRepository) SetStock(ctx context.Context, skuID string, qty int) error {
	return r.mutateStock(ctx, skuID, func(s *catalog.Sku) error { return s.SetStock(qty) })
}

// mutateStock is one optimistic read-modify-write round: read the row,
// apply the ledger operation through the entity methods, and write stock,
// reserved, and version back conditioned on the version read. Losing the
// race surfaces as ErrVersionConflict and the caller retries from a fresh
// read.
func (r *CatalogRepository) mutateStock(ctx context.Context, skuID string, fn func(*catalog.Sku) error) error {
	s, err := r.GetSku(ctx, skuID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if !s.TrackStock {
		return nil
	}

	tag, err := r.q.Exec(ctx, updateStockSQL, s.ID, s.Stock, s.Reserved, s.Version)
	if err != nil {
		return errors.Wrapf(err, "write stock for sku %q", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVersionConflict
	}
	return nil
}

// missOrConflict disambiguates a zero-row conditional update.
func (r *CatalogRepository) missOrConflict(ctx context.Context, skuID string) error {
	var exists bool
	if err := r.q.QueryRow(ctx, skuExistsSQL, skuID).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check sku %q", skuID)
	}
	if !exists {
		return catalog.ErrNotFound
	}
	return catalog.ErrVersionConflict
}

func (r *CatalogRepository) scanSku(row pgx.Row) (*catalog.Sku, error) {
	var (
		s        catalog.Sku
		amount   decimal.Decimal
		currency string
	)
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.Description, &s.ProductID, &s.ProductName,
		&amount, &currency, &s.Stock, &s.Reserved, &s.TrackStock, &s.Active, &s.Version,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Price, err = money.New(amount, currency)
	if err != nil {
		return nil, errors.Wrapf(err, "price of sku %q", s.ID)
	}
	return &s, nil
}
