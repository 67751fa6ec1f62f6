package memory

import (
	"context"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.Repository = (*txOrders)(nil)

// txOrders is the order repository view of one transaction.
type txOrders struct {
	t *txn
}

func (r *txOrders) Save(_ context.Context, o *order.Order) error {
	if _, ok := r.t.d.orders[o.ID]; !ok {
		r.t.d.orderIDs = append(r.t.d.orderIDs, o.ID)
	}
	r.t.d.orders[o.ID] = cloneOrder(*o)
	r.t.touchOrder(o.ID)
	return nil
}

func (r *txOrders) FindByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.t.d.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (r *txOrders) ListByCustomer(_ context.Context, customerID string, page order.Page) ([]order.Order, error) {
	return r.list(customerID, func(order.Order) bool { return true }, page), nil
}

func (r *txOrders) ListByCustomerAndStatus(_ context.Context, customerID string, status order.Status, page order.Page) ([]order.Order, error) {
	return r.list(customerID, func(o order.Order) bool { return o.Status == status }, page), nil
}

// list walks insertion order backwards so results come back newest first.
// A non-positive limit means unbounded.
func (r *txOrders) list(customerID string, keep func(order.Order) bool, page order.Page) []order.Order {
	var out []order.Order
	skipped := 0
	for i := len(r.t.d.orderIDs) - 1; i >= 0; i-- {
		o := r.t.d.orders[r.t.d.orderIDs[i]]
		if o.CustomerID != customerID || !keep(o) {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		out = append(out, cloneOrder(o))
		if page.Limit > 0 && len(out) == page.Limit {
			break
		}
	}
	return out
}

var _ order.Repository = (*autoOrders)(nil)

// autoOrders runs each repository call as its own transaction.
type autoOrders struct {
	s *Store
}

func (r *autoOrders) do(ctx context.Context, fn func(repo order.Repository) error) error {
	return r.s.Do(ctx, func(ctx context.Context, stores order.Stores) error {
		return fn(stores.Orders)
	})
}

func (r *autoOrders) Save(ctx context.Context, o *order.Order) error {
	return r.do(ctx, func(repo order.Repository) error { return repo.Save(ctx, o) })
}

func (r *autoOrders) FindByID(ctx context.Context, id string) (o *order.Order, err error) {
	err = r.do(ctx, func(repo order.Repository) error {
		o, err = repo.FindByID(ctx, id)
		return err
	})
	return o, err
}

func (r *autoOrders) ListByCustomer(ctx context.Context, customerID string, page order.Page) (out []order.Order, err error) {
	err = r.do(ctx, func(repo order.Repository) error {
		out, err = repo.ListByCustomer(ctx, customerID, page)
		return err
	})
	return out, err
}

func (r *autoOrders) ListByCustomerAndStatus(ctx context.Context, customerID string, status order.Status, page order.Page) (out []order.Order, err error) {
	err = r.do(ctx, func(repo order.Repository) error {
		out, err = repo.ListByCustomerAndStatus(ctx, customerID, status, page)
		return err
	})
	return out, err
}
