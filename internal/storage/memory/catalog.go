package memory

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

var _ catalog.Repository = (*txCatalog)(nil)

// txCatalog is the catalog repository view of one transaction.
type txCatalog struct {
	t *txn
}

func (r *txCatalog) CreateProduct(_ context.Context, p *catalog.Product) error {
	if _, ok := r.t.d.products[p.ID]; ok {
		return errors.Errorf("product %q already exists", p.ID)
	}
	now := r.t.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.t.d.products[p.ID] = *p
	r.t.d.productIDs = append(r.t.d.productIDs, p.ID)
	r.t.touchProduct(p.ID)
	return nil
}

func (r *txCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := r.t.d.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (r *txCatalog) ListProducts(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(r.t.d.productIDs))
	for _, id := range r.t.d.productIDs {
		out = append(out, r.t.d.products[id])
	}
	return out, nil
}

func (r *txCatalog) CreateSku(_ context.Context, s *catalog.Sku) error {
	if _, ok := r.t.d.skus[s.ID]; ok {
		return errors.Errorf("sku %q already exists", s.ID)
	}
	if _, ok := r.t.d.skuIDByCode[s.Code]; ok {
		return errors.Errorf("sku code %q already exists", s.Code)
	}
	now := r.t.now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Version == 0 {
		s.Version = 1
	}

	r.t.d.skus[s.ID] = cloneSku(*s)
	r.t.d.skuIDByCode[s.Code] = s.ID
	r.t.createSku(s.ID)
	return nil
}

func (r *txCatalog) GetSku(_ context.Context, id string) (*catalog.Sku, error) {
	s, ok := r.t.d.skus[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := cloneSku(s)
	return &cp, nil
}

func (r *txCatalog) GetSkuByCode(ctx context.Context, code string) (*catalog.Sku, error) {
	id, ok := r.t.d.skuIDByCode[code]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return r.GetSku(ctx, id)
}

// UpdateSku writes non-stock SKU fields, checked against the version the
// caller read. Stock and Reserved are deliberately taken from the stored
// row: they only move through the ledger operations below.
func (r *txCatalog) UpdateSku(_ context.Context, s *catalog.Sku) error {
	stored, ok := r.t.d.skus[s.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	if stored.Version != s.Version {
		return catalog.ErrVersionConflict
	}
	r.t.touchSku(s.ID)

	next := cloneSku(*s)
	next.Stock = stored.Stock
	next.Reserved = stored.Reserved
	next.CreatedAt = stored.CreatedAt
	next.Version = stored.Version + 1
	next.UpdatedAt = r.t.now()

	r.t.d.skus[s.ID] = next
	*s = next
	return nil
}

func (r *txCatalog) ReserveStock(_ context.Context, skuID string, qty int) error {
	return r.mutateStock(skuID, func(s *catalog.Sku) error { return s.Reserve(qty) })
}

func (r *txCatalog) ReleaseReservedStock(_ context.Context, skuID string, qty int) error {
	return r.mutateStock(skuID, func(s *catalog.Sku) error { return s.Release(qty) })
}

func (r *txCatalog) ConsumeReservedStock(_ context.Context, skuID string, qty int) error {
	return r.mutateStock(skuID, func(s *catalog.Sku) error { return s.Consume(qty) })
}

func (r *txCatalog) SetStock(_ context.Context, skuID string, qty int) error {
	return r.mutateStock(skuID, func(s *catalog.Sku) error { return s.SetStock(qty) })
}

// mutateStock applies one ledger operation through the entity methods, so
// 0 <= reserved <= stock holds by construction, and bumps the version.
func (r *txCatalog) mutateStock(skuID string, fn func(*catalog.Sku) error) error {
	s, ok := r.t.d.skus[skuID]
	if !ok {
		return catalog.ErrNotFound
	}
	if err := fn(&s); err != nil {
		return err
	}
	r.t.touchSku(skuID)
	s.Version++
	s.UpdatedAt = r.t.now()
	r.t.d.skus[skuID] = s
	return nil
}

var _ catalog.Repository = (*autoCatalog)(nil)

// autoCatalog runs each repository call as its own transaction.
type autoCatalog struct {
	s *Store
}

func (r *autoCatalog) do(ctx context.Context, fn func(c catalog.Repository) error) error {
	return r.s.Do(ctx, func(ctx context.Context, stores order.Stores) error {
		return fn(stores.Catalog)
	})
}

func (r *autoCatalog) CreateProduct(ctx context.Context, p *catalog.Product) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.CreateProduct(ctx, p) })
}

func (r *autoCatalog) GetProduct(ctx context.Context, id string) (p *catalog.Product, err error) {
	err = r.do(ctx, func(c catalog.Repository) error {
		p, err = c.GetProduct(ctx, id)
		return err
	})
	return p, err
}

func (r *autoCatalog) ListProducts(ctx context.Context) (out []catalog.Product, err error) {
	err = r.do(ctx, func(c catalog.Repository) error {
		out, err = c.ListProducts(ctx)
		return err
	})
	return out, err
}

func (r *autoCatalog) CreateSku(ctx context.Context, s *catalog.Sku) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.CreateSku(ctx, s) })
}

func (r *autoCatalog) GetSku(ctx context.Context, id string) (s *catalog.Sku, err error) {
	err = r.do(ctx, func(c catalog.Repository) error {
		s, err = c.GetSku(ctx, id)
		return err
	})
	return s, err
}

func (r *autoCatalog) GetSkuByCode(ctx context.Context, code string) (s *catalog.Sku, err error) {
	err = r.do(ctx, func(c catalog.Repository) error {
		s, err = c.GetSkuByCode(ctx, code)
		return err
	})
	return s, err
}

func (r *autoCatalog) UpdateSku(ctx context.Context, s *catalog.Sku) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.UpdateSku(ctx, s) })
}

func (r *autoCatalog) ReserveStock(ctx context.Context, skuID string, qty int) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.ReserveStock(ctx, skuID, qty) })
}

func (r *autoCatalog) ReleaseReservedStock(ctx context.Context, skuID string, qty int) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.ReleaseReservedStock(ctx, skuID, qty) })
}

func (r *autoCatalog) ConsumeReservedStock(ctx context.Context, skuID string, qty int) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.ConsumeReservedStock(ctx, skuID, qty) })
}

func (r *autoCatalog) SetStock(ctx context.Context, skuID string, qty int) error {
	return r.do(ctx, func(c catalog.Repository) error { return c.SetStock(ctx, skuID, qty) })
}
