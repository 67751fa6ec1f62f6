package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
)

// Workflow errors surfaced by order placement.
var (
	ErrCartNotFound = errors.New("no active cart for customer")
	ErrEmptyCart    = errors.New("cannot create order from empty cart")
)

// SkuInactiveError indicates a cart line references a deactivated SKU.
type SkuInactiveError struct {
	SkuCode string
}

func (e *SkuInactiveError) Error() string {
	return "sku is not active: " + e.SkuCode
}

// SkuNotFoundError indicates a cart line references a SKU that no longer
// exists in the catalog.
type SkuNotFoundError struct {
	SkuID string
}

func (e *SkuNotFoundError) Error() string {
	return "sku not found: " + e.SkuID
}

// Stores bundles the repositories participating in one unit of work. All
// reads and writes made through a Stores either commit together or roll
// back together.
type Stores struct {
	Catalog catalog.Repository
	Carts   cart.Repository
	Orders  Repository
}

// UnitOfWork runs fn against transactional stores. When fn returns an error
// every change recorded through the stores is discarded — including stock
// reservations. Implementations may also fail the commit itself with
// catalog.ErrVersionConflict when a versioned stock write lost a race.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// Retry bounds. A single reserve that hits a version conflict is retried
// in place from a fresh read; a conflict detected at commit time retries
// the whole placement. Past the bounds the conflict surfaces to the caller
// as the retryable catalog.ErrVersionConflict.
const (
	reserveRetries   = 3
	placementRetries = 3
)

// Service orchestrates the order lifecycle. Placement is the only writer
// that mutates reserved stock; cancellation releases it.
type Service struct {
	uow      UnitOfWork
	tax      TaxPolicy
	shipping ShippingPolicy
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithTaxPolicy replaces the placeholder flat 10% tax.
func WithTaxPolicy(p TaxPolicy) Option {
	return func(s *Service) { s.tax = p }
}

// WithShippingPolicy replaces the placeholder flat-rate shipping.
func WithShippingPolicy(p ShippingPolicy) Option {
	return func(s *Service) { s.shipping = p }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an order Service running on the given unit of work.
func NewService(uow UnitOfWork, opts ...Option) *Service {
	s := &Service{
		uow:      uow,
		tax:      DefaultTaxPolicy(),
		shipping: DefaultShippingPolicy(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrderRequest holds the input for converting a cart into an order.
type PlaceOrderRequest struct {
	CustomerID      string
	ShippingAddress string
	BillingAddress  string
	Notes           string
}

// CreateOrderFromCart converts the customer's active cart into a PENDING
// order inside one atomic unit of work:
//
//  1. Load the active cart; fail if absent or empty.
//  2. Per cart line, in cart order: load the SKU, require it active, check
//     availability, reserve stock through the versioned ledger write
//     (bounded in-place retry on conflicts), snapshot the line, accumulate
//     the subtotal.
//  3. Apply the tax and shipping policies.
//  4. Persist the order and deactivate the cart.
//
// If anything fails, no reservation made during the attempt survives and no
// order is persisted. A version conflict at commit retries the whole
// placement from a fresh read, a bounded number of times.
func (s *Service) CreateOrderFromCart(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var placed *Order
	var lastErr error

	for range placementRetries {
		placed = nil
		err := s.uow.Do(ctx, func(ctx context.Context, tx Stores) error {
			o, err := s.placeOrder(ctx, tx, req)
			if err != nil {
				return err
			}
			placed = o
			return nil
		})
		if err == nil {
			return placed, nil
		}
		if !errors.Is(err, catalog.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) placeOrder(ctx context.Context, tx Stores, req PlaceOrderRequest) (*Order, error) {
	c, err := tx.Carts.FindActiveByCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, errors.Wrap(err, "find cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	items := make([]Item, 0, len(c.Items))
	var subtotal *money.Money
	for _, line := range c.Items {
		sku, err := s.reserveLine(ctx, tx.Catalog, line.SkuID, line.Quantity)
		if err != nil {
			return nil, err
		}

		item, err := NewItem(sku.ID, sku.Code, sku.ProductName, sku.Name, line.Quantity, sku.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if subtotal == nil {
			zero := money.Zero(item.UnitPrice.Currency())
			subtotal = &zero
		}
		sum, err := subtotal.Add(item.TotalPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "accumulate sku %s", sku.Code)
		}
		subtotal = &sum
	}

	taxAmount, err := s.tax(*subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "tax")
	}
	shippingAmount, err := s.shipping(*subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "shipping")
	}

	o, err := New(
		s.newID(), req.CustomerID, items,
		*subtotal, taxAmount, shippingAmount,
		s.now(),
		req.ShippingAddress, req.BillingAddress, req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	if err := tx.Carts.Deactivate(ctx, req.CustomerID); err != nil {
		return nil, errors.Wrap(err, "deactivate cart")
	}
	return o, nil
}

// reserveLine validates and reserves one cart line, retrying the versioned
// reserve in place when it loses a race, each time from a fresh read.
func (s *Service) reserveLine(ctx context.Context, cat catalog.Repository, skuID string, quantity int) (*catalog.Sku, error) {
	var lastErr error
	for range reserveRetries {
		sku, err := cat.GetSku(ctx, skuID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &SkuNotFoundError{SkuID: skuID}
			}
			return nil, errors.Wrapf(err, "get sku %s", skuID)
		}
		if !sku.Active {
			return nil, &SkuInactiveError{SkuCode: sku.Code}
		}
		if !sku.CanFulfill(quantity) {
			return nil, &catalog.InsufficientStockError{
				SkuCode:   sku.Code,
				Requested: quantity,
				Available: sku.Available(),
			}
		}

		err = cat.ReserveStock(ctx, skuID, quantity)
		if err == nil {
			return sku, nil
		}
		if !errors.Is(err, catalog.ErrVersionConflict) {
			return nil, errors.Wrapf(err, "reserve sku %s", sku.Code)
		}
		lastErr = err
	}
	return nil, lastErr
}

// CancelOrder releases every item's reservation and transitions the order
// to CANCELLED, atomically: if any release fails the status is unchanged
// and all releases roll back.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	var cancelled *Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx Stores) error {
		o, err := tx.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanBeCancelled() {
			return &IllegalTransitionError{From: o.Status, To: StatusCancelled}
		}

		for _, item := range o.Items {
			if err := tx.Catalog.ReleaseReservedStock(ctx, item.SkuID, item.Quantity); err != nil {
				return errors.Wrapf(err, "release sku %s", item.SkuCode)
			}
		}

		if err := o.Cancel(); err != nil {
			return err
		}
		if err := tx.Orders.Save(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// ConfirmOrder moves the order to CONFIRMED.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, (*Order).Confirm)
}

// ProcessOrder moves the order to PROCESSING.
func (s *Service) ProcessOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, (*Order).Process)
}

// ShipOrder moves the order to SHIPPED.
func (s *Service) ShipOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, (*Order).Ship)
}

// DeliverOrder moves the order to DELIVERED.
func (s *Service) DeliverOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, (*Order).Deliver)
}

// RefundOrder moves a DELIVERED order to REFUNDED.
func (s *Service) RefundOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, (*Order).Refund)
}

// UpdateShippingAddress edits the shipping address while the status allows.
func (s *Service) UpdateShippingAddress(ctx context.Context, orderID, address string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return o.UpdateShippingAddress(address)
	})
}

// UpdateNotes edits the free-form notes.
func (s *Service) UpdateNotes(ctx context.Context, orderID, notes string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		o.UpdateNotes(notes)
		return nil
	})
}

// GetOrder returns one order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var found *Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx Stores) error {
		o, err := tx.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		found = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListOrders returns the customer's orders, newest first, optionally
// filtered by status.
func (s *Service) ListOrders(ctx context.Context, customerID string, status Status, page Page) ([]Order, error) {
	var out []Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx Stores) error {
		var err error
		if status == "" {
			out, err = tx.Orders.ListByCustomer(ctx, customerID, page)
		} else {
			out, err = tx.Orders.ListByCustomerAndStatus(ctx, customerID, status, page)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate loads the order, applies op, and saves — one atomic check-and-set.
func (s *Service) mutate(ctx context.Context, orderID string, op func(*Order) error) (*Order, error) {
	var mutated *Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx Stores) error {
		o, err := tx.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := op(o); err != nil {
			return err
		}
		if err := tx.Orders.Save(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		mutated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mutated, nil
}
