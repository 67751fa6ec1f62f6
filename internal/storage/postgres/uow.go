package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs workflow callbacks inside one database transaction, so a
// failed order placement rolls its stock reservations back with it.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a UnitOfWork on the given pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Do begins a transaction, hands fn repositories bound to it, and commits
// when fn succeeds. Any error from fn or the commit rolls everything back.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx order.Stores) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, order.Stores{
			Catalog: NewCatalogRepository(tx),
			Carts:   NewCartRepository(tx),
			Orders:  NewOrderRepository(tx),
		})
	})
}

// Stores returns autocommit repositories on the pool, for callers that do
// not need transactional grouping.
func (u *UnitOfWork) Stores() order.Stores {
	return order.Stores{
		Catalog: NewCatalogRepository(u.pool),
		Carts:   NewCartRepository(u.pool),
		Orders:  NewOrderRepository(u.pool),
	}
}
