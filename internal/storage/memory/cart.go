package memory

import (
	"context"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

var _ cart.Repository = (*txCarts)(nil)

// txCarts is the cart repository view of one transaction. The store keeps
// at most one active cart per customer through the activeCart index.
type txCarts struct {
	t *txn
}

func (r *txCarts) FindActiveByCustomer(_ context.Context, customerID string) (*cart.Cart, error) {
	cartID, ok := r.t.d.activeCart[customerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c := cloneCart(r.t.d.carts[cartID])
	return &c, nil
}

func (r *txCarts) Save(_ context.Context, c *cart.Cart) error {
	now := r.t.now()
	if stored, ok := r.t.d.carts[c.ID]; ok {
		c.CreatedAt = stored.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	r.t.d.carts[c.ID] = cloneCart(*c)
	if c.Active {
		r.t.d.activeCart[c.CustomerID] = c.ID
	} else if r.t.d.activeCart[c.CustomerID] == c.ID {
		delete(r.t.d.activeCart, c.CustomerID)
	}
	r.t.touchCart(c.ID, c.CustomerID)
	return nil
}

func (r *txCarts) Deactivate(_ context.Context, customerID string) error {
	cartID, ok := r.t.d.activeCart[customerID]
	if !ok {
		return cart.ErrNotFound
	}
	c := r.t.d.carts[cartID]
	c.Deactivate()
	c.UpdatedAt = r.t.now()
	r.t.d.carts[cartID] = c
	delete(r.t.d.activeCart, customerID)
	r.t.touchCart(cartID, customerID)
	return nil
}

var _ cart.Repository = (*autoCarts)(nil)

// autoCarts runs each repository call as its own transaction.
type autoCarts struct {
	s *Store
}

func (r *autoCarts) do(ctx context.Context, fn func(c cart.Repository) error) error {
	return r.s.Do(ctx, func(ctx context.Context, stores order.Stores) error {
		return fn(stores.Carts)
	})
}

func (r *autoCarts) FindActiveByCustomer(ctx context.Context, customerID string) (c *cart.Cart, err error) {
	err = r.do(ctx, func(repo cart.Repository) error {
		c, err = repo.FindActiveByCustomer(ctx, customerID)
		return err
	})
	return c, err
}

func (r *autoCarts) Save(ctx context.Context, c *cart.Cart) error {
	return r.do(ctx, func(repo cart.Repository) error { return repo.Save(ctx, c) })
}

func (r *autoCarts) Deactivate(ctx context.Context, customerID string) error {
	return r.do(ctx, func(repo cart.Repository) error { return repo.Deactivate(ctx, customerID) })
}
