// Package order holds the order aggregate, its status state machine, and
// the placement workflow that converts a cart into a persisted order.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/money"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order. Transitions are one-directional:
// PENDING → CONFIRMED → PROCESSING → SHIPPED → DELIVERED → REFUNDED, with
// CANCELLED reachable from PENDING, CONFIRMED, or PROCESSING. RETURNED is
// declared as a terminal state but no transition currently produces it; it
// exists for a future returns flow.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
	StatusReturned   Status = "RETURNED"
)

// IllegalTransitionError indicates a status change that the state machine
// does not permit.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
}

// AddressLockedError indicates the shipping address can no longer be
// edited because the order has moved past CONFIRMED.
type AddressLockedError struct {
	Status Status
}

func (e *AddressLockedError) Error() string {
	return fmt.Sprintf("shipping address is locked in status %s", e.Status)
}

// Item is an immutable line-item snapshot captured at order creation, so
// historical orders are unaffected by later catalog edits.
type Item struct {
	SkuID       string      `json:"sku_id"`
	SkuCode     string      `json:"sku_code"`
	ProductName string      `json:"product_name"`
	SkuName     string      `json:"sku_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Money `json:"unit_price"`
	TotalPrice  money.Money `json:"total_price"`
}

// NewItem snapshots one order line and derives its total price.
func NewItem(skuID, skuCode, productName, skuName string, quantity int, unitPrice money.Money) (Item, error) {
	total, err := unitPrice.MulInt(quantity)
	if err != nil {
		return Item{}, errors.Wrapf(err, "total price for sku %s", skuCode)
	}
	return Item{
		SkuID:       skuID,
		SkuCode:     skuCode,
		ProductName: productName,
		SkuName:     skuName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  total,
	}, nil
}

// Order is created once; items and the subtotal/tax/shipping breakdown are
// fixed at creation time. Only the status, shipping address, and notes
// change afterwards, under the rules enforced by the methods below.
type Order struct {
	ID              string
	CustomerID      string
	Status          Status
	Items           []Item
	Subtotal        money.Money
	TaxAmount       money.Money
	ShippingAmount  money.Money
	TotalAmount     money.Money
	OrderDate       time.Time
	ShippingAddress string
	BillingAddress  string
	Notes           string
}

// New constructs a PENDING order, deriving totalAmount = subtotal + tax +
// shipping with currency-checked arithmetic.
func New(
	id, customerID string,
	items []Item,
	subtotal, taxAmount, shippingAmount money.Money,
	orderDate time.Time,
	shippingAddress, billingAddress, notes string,
) (*Order, error) {
	total, err := subtotal.Add(taxAmount)
	if err != nil {
		return nil, errors.Wrap(err, "add tax")
	}
	total, err = total.Add(shippingAmount)
	if err != nil {
		return nil, errors.Wrap(err, "add shipping")
	}

	return &Order{
		ID:              id,
		CustomerID:      customerID,
		Status:          StatusPending,
		Items:           items,
		Subtotal:        subtotal,
		TaxAmount:       taxAmount,
		ShippingAmount:  shippingAmount,
		TotalAmount:     total,
		OrderDate:       orderDate,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		Notes:           notes,
	}, nil
}

// Confirm moves PENDING → CONFIRMED.
func (o *Order) Confirm() error {
	return o.transition(StatusPending, StatusConfirmed)
}

// Process moves CONFIRMED → PROCESSING.
func (o *Order) Process() error {
	return o.transition(StatusConfirmed, StatusProcessing)
}

// Ship moves PROCESSING → SHIPPED.
func (o *Order) Ship() error {
	return o.transition(StatusProcessing, StatusShipped)
}

// Deliver moves SHIPPED → DELIVERED.
func (o *Order) Deliver() error {
	return o.transition(StatusShipped, StatusDelivered)
}

// Refund moves DELIVERED → REFUNDED.
func (o *Order) Refund() error {
	return o.transition(StatusDelivered, StatusRefunded)
}

// Cancel moves to CANCELLED from any cancellable state.
func (o *Order) Cancel() error {
	if !o.CanBeCancelled() {
		return &IllegalTransitionError{From: o.Status, To: StatusCancelled}
	}
	o.Status = StatusCancelled
	return nil
}

// CanBeCancelled reports whether the order may still be cancelled.
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	default:
		return false
	}
}

// IsCompleted reports whether the order reached a final fulfilled state.
func (o *Order) IsCompleted() bool {
	return o.Status == StatusDelivered || o.Status == StatusRefunded
}

// UpdateShippingAddress is only permitted before the order starts processing.
func (o *Order) UpdateShippingAddress(address string) error {
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return &AddressLockedError{Status: o.Status}
	}
	o.ShippingAddress = address
	return nil
}

// UpdateNotes may be called in any status.
func (o *Order) UpdateNotes(notes string) {
	o.Notes = notes
}

// transition is a single atomic check-and-set; no transition is retried.
func (o *Order) transition(from, to Status) error {
	if o.Status != from {
		return &IllegalTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// Page bounds a paged query.
type Page struct {
	Offset int
	Limit  int
}

// Repository defines order persistence: plain storage, no business logic.
// List queries return orders newest first.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, page Page) ([]Order, error)
	ListByCustomerAndStatus(ctx context.Context, customerID string, status Status, page Page) ([]Order, error)
}
