package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
)

// SkuInactiveError indicates a cart operation referenced a deactivated SKU.
type SkuInactiveError struct {
	SkuCode string
}

func (e *SkuInactiveError) Error() string {
	return "sku is not active: " + e.SkuCode
}

// Service mutates carts with availability checks against the catalog. Stock
// checks here are read-only; the placement workflow is the only writer of
// reserved stock.
type Service struct {
	carts   Repository
	catalog catalog.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, cat catalog.Repository) *Service {
	return &Service{carts: carts, catalog: cat}
}

// GetCart returns the customer's active cart with unit prices refreshed from
// the catalog.
func (s *Service) GetCart(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshPrices(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem validates the SKU and its availability, then merges the quantity
// into the customer's active cart, creating the cart when absent.
func (s *Service) AddItem(ctx context.Context, customerID, skuID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	sku, err := s.catalog.GetSku(ctx, skuID)
	if err != nil {
		return nil, errors.Wrap(err, "get sku")
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

	c, err := s.carts.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "find cart")
		}
		c = New(uuid.New().String(), customerID)
	}

	// A cart holds a single currency; reject the mismatch before the cart
	// is mutated rather than letting Total fail later.
	if !c.IsEmpty() && c.Items[0].UnitPrice.Currency() != sku.Price.Currency() {
		return nil, errors.Wrapf(money.ErrCurrencyMismatch,
			"cart is in %s, sku %s is in %s", c.Items[0].UnitPrice.Currency(), sku.Code, sku.Price.Currency())
	}

	if err := c.AddItem(skuID, quantity, sku.Price); err != nil {
		return nil, err
	}
	if err := s.refreshPrices(ctx, c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateItemQuantity sets an absolute quantity on an existing line. When the
// quantity increases, the additional units are availability-checked first.
func (s *Service) UpdateItemQuantity(ctx context.Context, customerID, skuID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.carts.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	existing := c.Item(skuID)
	if existing == nil {
		return nil, ErrItemNotFound
	}

	if quantity > existing.Quantity {
		sku, err := s.catalog.GetSku(ctx, skuID)
		if err != nil {
			return nil, errors.Wrap(err, "get sku")
		}
		additional := quantity - existing.Quantity
		if !sku.CanFulfill(additional) {
			return nil, &catalog.InsufficientStockError{
				SkuCode:   sku.Code,
				Requested: additional,
				Available: sku.Available(),
			}
		}
	}

	if err := c.UpdateItemQuantity(skuID, quantity); err != nil {
		return nil, err
	}
	if err := s.refreshPrices(ctx, c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line from the customer's active cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, skuID string) (*Cart, error) {
	c, err := s.carts.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	c.RemoveItem(skuID)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ClearCart empties the customer's active cart.
func (s *Service) ClearCart(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	c.Clear()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// refreshPrices re-reads each line's SKU and updates the cached unit price
// so totals reflect current catalog pricing.
func (s *Service) refreshPrices(ctx context.Context, c *Cart) error {
	for i := range c.Items {
		sku, err := s.catalog.GetSku(ctx, c.Items[i].SkuID)
		if err != nil {
			return errors.Wrapf(err, "refresh price for sku %s", c.Items[i].SkuID)
		}
		c.Items[i].UnitPrice = sku.Price
	}
	return nil
}
