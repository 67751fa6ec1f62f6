package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	// Line items are immutable snapshots, kept whole in a JSONB column the
	// same way carts keep theirs; only the header columns ever change.
	saveOrderSQL = `INSERT INTO orders
	(id, customer_id, status, items, subtotal, tax_amount, shipping_amount, total_amount,
	 currency, order_date, shipping_address, billing_address, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
	    shipping_address = EXCLUDED.shipping_address,
	    notes = EXCLUDED.notes,
	    updated_at = now()`

	selectOrderSQL = `SELECT id, customer_id, status, items, subtotal, tax_amount,
	shipping_amount, total_amount, currency, order_date, shipping_address,
	billing_address, notes FROM orders`

	getOrderSQL = selectOrderSQL + ` WHERE id = $1`

	listOrdersSQL = selectOrderSQL + ` WHERE customer_id = $1
	ORDER BY order_date DESC OFFSET $2 LIMIT $3`

	listOrdersByStatusSQL = selectOrderSQL + ` WHERE customer_id = $1 AND status = $2
	ORDER BY order_date DESC OFFSET $3 LIMIT $4`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// NewOrderRepository returns an OrderRepository running on the given pool
// or transaction.
func NewOrderRepository(q querier) *OrderRepository {
	return &OrderRepository{q: q}
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrapf(err, "encode items of order %q", o.ID)
	}

	_, err = r.q.Exec(ctx, saveOrderSQL,
		o.ID, o.CustomerID, string(o.Status), itemsJSON,
		o.Subtotal.Amount(), o.TaxAmount.Amount(), o.ShippingAmount.Amount(), o.TotalAmount.Amount(),
		o.Subtotal.Currency(), o.OrderDate,
		o.ShippingAddress, o.BillingAddress, o.Notes,
	)
	if err != nil {
		return errors.Wrapf(err, "save order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, page order.Page) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, listOrdersSQL, customerID, page.Offset, pageLimit(page))
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for customer %q", customerID)
	}
	return collectOrders(rows)
}

func (r *OrderRepository) ListByCustomerAndStatus(ctx context.Context, customerID string, status order.Status, page order.Page) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, listOrdersByStatusSQL, customerID, string(status), page.Offset, pageLimit(page))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s orders for customer %q", status, customerID)
	}
	return collectOrders(rows)
}

// pageLimit maps a non-positive limit to SQL's unbounded LIMIT.
func pageLimit(page order.Page) any {
	if page.Limit <= 0 {
		return nil
	}
	return page.Limit
}

func collectOrders(rows pgx.Rows) ([]order.Order, error) {
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o         order.Order
		status    string
		itemsJSON []byte
		subtotal  decimal.Decimal
		tax       decimal.Decimal
		shipping  decimal.Decimal
		total     decimal.Decimal
		currency  string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &status, &itemsJSON,
		&subtotal, &tax, &shipping, &total, &currency,
		&o.OrderDate, &o.ShippingAddress, &o.BillingAddress, &o.Notes,
	)
	if err != nil {
		return nil, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, errors.Wrapf(err, "decode items of order %q", o.ID)
	}

	for dst, amount := range map[*money.Money]decimal.Decimal{
		&o.Subtotal:       subtotal,
		&o.TaxAmount:      tax,
		&o.ShippingAmount: shipping,
		&o.TotalAmount:    total,
	} {
		m, err := money.New(amount, currency)
		if err != nil {
			return nil, errors.Wrapf(err, "amounts of order %q", o.ID)
		}
		*dst = m
	}
	return &o, nil
}
