package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	findActiveCartSQL = `SELECT id, customer_id, items, active, created_at, updated_at
	FROM carts WHERE customer_id = $1 AND active`

	// Upsert keyed by cart ID; the partial unique index on customer_id
	// keeps a second active cart from sneaking in.
	saveCartSQL = `INSERT INTO carts (id, customer_id, items, active)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET items = EXCLUDED.items, active = EXCLUDED.active, updated_at = now()`

	deactivateCartSQL = `UPDATE carts SET active = FALSE, updated_at = now()
	WHERE customer_id = $1 AND active`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Cart
// lines live in a JSONB column: they are only ever read and written as a
// whole with their cart.
type CartRepository struct {
	q querier
}

// NewCartRepository returns a CartRepository running on the given pool or
// transaction.
func NewCartRepository(q querier) *CartRepository {
	return &CartRepository{q: q}
}

func (r *CartRepository) FindActiveByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	err := r.q.QueryRow(ctx, findActiveCartSQL, customerID).Scan(
		&c.ID, &c.CustomerID, &itemsJSON, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find cart for customer %q", customerID)
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, errors.Wrapf(err, "decode items of cart %q", c.ID)
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return errors.Wrapf(err, "encode items of cart %q", c.ID)
	}
	if _, err := r.q.Exec(ctx, saveCartSQL, c.ID, c.CustomerID, itemsJSON, c.Active); err != nil {
		return errors.Wrapf(err, "save cart %q", c.ID)
	}
	return nil
}

func (r *CartRepository) Deactivate(ctx context.Context, customerID string) error {
	tag, err := r.q.Exec(ctx, deactivateCartSQL, customerID)
	if err != nil {
		return errors.Wrapf(err, "deactivate cart for customer %q", customerID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}
