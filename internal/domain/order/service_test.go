package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
)

// --- Fakes ---
//
// fakeUnitOfWork gives each Do call the live stores and rolls back by
// restoring a deep copy on error, which is enough to assert the
// all-or-nothing behavior of the placement workflow.

type fakeCatalog struct {
	catalog.Repository

	skus map[string]*catalog.Sku

	// reserveConflicts fails the next N ReserveStock calls per SKU with
	// a version conflict before letting one through.
	reserveConflicts map[string]int
}

func newFakeCatalog(skus ...*catalog.Sku) *fakeCatalog {
	byID := make(map[string]*catalog.Sku, len(skus))
	for _, s := range skus {
		byID[s.ID] = s
	}
	return &fakeCatalog{skus: byID, reserveConflicts: make(map[string]int)}
}

func (f *fakeCatalog) GetSku(_ context.Context, id string) (*catalog.Sku, error) {
	s, ok := f.skus[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCatalog) ReserveStock(_ context.Context, id string, quantity int) error {
	s, ok := f.skus[id]
	if !ok {
		return catalog.ErrNotFound
	}
	if f.reserveConflicts[id] > 0 {
		f.reserveConflicts[id]--
		return catalog.ErrVersionConflict
	}
	if err := s.Reserve(quantity); err != nil {
		return err
	}
	s.Version++
	return nil
}

func (f *fakeCatalog) ReleaseReservedStock(_ context.Context, id string, quantity int) error {
	s, ok := f.skus[id]
	if !ok {
		return catalog.ErrNotFound
	}
	if err := s.Release(quantity); err != nil {
		return err
	}
	s.Version++
	return nil
}

func (f *fakeCatalog) clone() map[string]*catalog.Sku {
	out := make(map[string]*catalog.Sku, len(f.skus))
	for id, s := range f.skus {
		cp := *s
		out[id] = &cp
	}
	return out
}

type fakeCarts struct {
	byCustomer map[string]*cart.Cart
}

func (f *fakeCarts) FindActiveByCustomer(_ context.Context, customerID string) (*cart.Cart, error) {
	c, ok := f.byCustomer[customerID]
	if !ok || !c.Active {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp, nil
}

func (f *fakeCarts) Save(_ context.Context, c *cart.Cart) error {
	f.byCustomer[c.CustomerID] = c
	return nil
}

func (f *fakeCarts) Deactivate(_ context.Context, customerID string) error {
	c, ok := f.byCustomer[customerID]
	if !ok {
		return cart.ErrNotFound
	}
	c.Deactivate()
	return nil
}

func (f *fakeCarts) clone() map[string]*cart.Cart {
	out := make(map[string]*cart.Cart, len(f.byCustomer))
	for id, c := range f.byCustomer {
		cp := *c
		cp.Items = append([]cart.Item(nil), c.Items...)
		out[id] = &cp
	}
	return out
}

type fakeOrders struct {
	byID map[string]*Order
}

func (f *fakeOrders) Save(_ context.Context, o *Order) error {
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	f.byID[o.ID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (*Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID string, _ Page) ([]Order, error) {
	var out []Order
	for _, o := range f.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListByCustomerAndStatus(ctx context.Context, customerID string, status Status, page Page) ([]Order, error) {
	all, _ := f.ListByCustomer(ctx, customerID, page)
	out := all[:0]
	for _, o := range all {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) clone() map[string]*Order {
	out := make(map[string]*Order, len(f.byID))
	for id, o := range f.byID {
		cp := *o
		cp.Items = append([]Item(nil), o.Items...)
		out[id] = &cp
	}
	return out
}

type fakeUnitOfWork struct {
	catalog *fakeCatalog
	carts   *fakeCarts
	orders  *fakeOrders
}

func newFakeUnitOfWork(skus ...*catalog.Sku) *fakeUnitOfWork {
	return &fakeUnitOfWork{
		catalog: newFakeCatalog(skus...),
		carts:   &fakeCarts{byCustomer: make(map[string]*cart.Cart)},
		orders:  &fakeOrders{byID: make(map[string]*Order)},
	}
}

func (f *fakeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error {
	skus := f.catalog.clone()
	carts := f.carts.clone()
	orders := f.orders.clone()

	err := fn(ctx, Stores{Catalog: f.catalog, Carts: f.carts, Orders: f.orders})
	if err != nil {
		f.catalog.skus = skus
		f.carts.byCustomer = carts
		f.orders.byID = orders
		return err
	}
	return nil
}

// --- Helpers ---

func testSku(id, code, price string, stock int) *catalog.Sku {
	return &catalog.Sku{
		ID:          id,
		Code:        code,
		Name:        code,
		ProductName: "Widgets",
		Price:       money.MustParse(price, "USD"),
		Stock:       stock,
		TrackStock:  true,
		Active:      true,
		Version:     1,
	}
}

func seedCart(t *testing.T, uow *fakeUnitOfWork, customerID string, lines ...cart.Item) {
	t.Helper()
	c := cart.New("c-"+customerID, customerID)
	for _, line := range lines {
		require.NoError(t, c.AddItem(line.SkuID, line.Quantity, line.UnitPrice))
	}
	uow.carts.byCustomer[customerID] = c
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

// --- Tests ---

func TestCreateOrderFromCart(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 2, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow, WithClock(fixedClock()))
	o, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{
		CustomerID:      "cust1",
		ShippingAddress: "1 Main St",
		BillingAddress:  "1 Main St",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.Subtotal.Equal(money.MustParse("50.00", "USD")))
	assert.True(t, o.TaxAmount.Equal(money.MustParse("5.00", "USD")))
	// Exactly at the free-shipping threshold still pays the flat fee.
	assert.True(t, o.ShippingAmount.Equal(money.MustParse("10.00", "USD")))
	assert.True(t, o.TotalAmount.Equal(money.MustParse("65.00", "USD")))

	require.Len(t, o.Items, 1)
	assert.Equal(t, "WIDGET", o.Items[0].SkuCode)
	assert.True(t, o.Items[0].TotalPrice.Equal(money.MustParse("50.00", "USD")))

	// Stock reserved, cart deactivated, order persisted.
	assert.Equal(t, 2, uow.catalog.skus["s1"].Reserved)
	assert.False(t, uow.carts.byCustomer["cust1"].Active)
	saved, err := uow.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, saved.Status)
}

func TestCreateOrderFromCart_FreeShipping(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.01", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 2, UnitPrice: money.MustParse("25.01", "USD")})

	svc := NewService(uow, WithClock(fixedClock()))
	o, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)

	assert.True(t, o.ShippingAmount.IsZero())
	assert.True(t, o.TotalAmount.Equal(money.MustParse("55.02", "USD"))) // 50.02 + 5.00 tax
}

func TestCreateOrderFromCart_NoCart(t *testing.T) {
	svc := NewService(newFakeUnitOfWork())

	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "ghost"})
	require.ErrorIs(t, err, ErrCartNotFound)
}

func TestCreateOrderFromCart_EmptyCart(t *testing.T) {
	uow := newFakeUnitOfWork()
	seedCart(t, uow, "cust1")

	svc := NewService(uow)
	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderFromCart_InsufficientStockRollsBack(t *testing.T) {
	uow := newFakeUnitOfWork(
		testSku("s1", "WIDGET", "10.00", 10),
		testSku("s2", "GADGET", "5.00", 1),
	)
	seedCart(t, uow, "cust1",
		cart.Item{SkuID: "s1", Quantity: 2, UnitPrice: money.MustParse("10.00", "USD")},
		cart.Item{SkuID: "s2", Quantity: 3, UnitPrice: money.MustParse("5.00", "USD")},
	)

	svc := NewService(uow)
	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})

	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "GADGET", stockErr.SkuCode)

	// The first line's reservation did not survive the failed attempt.
	assert.Equal(t, 0, uow.catalog.skus["s1"].Reserved)
	assert.True(t, uow.carts.byCustomer["cust1"].Active)
	assert.Empty(t, uow.orders.byID)
}

func TestCreateOrderFromCart_InactiveSkuFails(t *testing.T) {
	sku := testSku("s1", "WIDGET", "10.00", 10)
	sku.Active = false
	uow := newFakeUnitOfWork(sku)
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("10.00", "USD")})

	svc := NewService(uow)
	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})

	var inactiveErr *SkuInactiveError
	require.ErrorAs(t, err, &inactiveErr)
	assert.Equal(t, "WIDGET", inactiveErr.SkuCode)
}

func TestCreateOrderFromCart_MissingSkuFails(t *testing.T) {
	uow := newFakeUnitOfWork()
	seedCart(t, uow, "cust1", cart.Item{SkuID: "ghost", Quantity: 1, UnitPrice: money.MustParse("10.00", "USD")})

	svc := NewService(uow)
	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})

	var notFound *SkuNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreateOrderFromCart_RetriesReserveConflict(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "10.00", 10))
	uow.catalog.reserveConflicts["s1"] = 2
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("10.00", "USD")})

	svc := NewService(uow)
	o, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, 1, uow.catalog.skus["s1"].Reserved)
}

func TestCreateOrderFromCart_ConflictBudgetExhausted(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "10.00", 10))
	// More conflicts than the per-line and whole-placement budgets combined.
	uow.catalog.reserveConflicts["s1"] = reserveRetries * placementRetries
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("10.00", "USD")})

	svc := NewService(uow)
	_, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.ErrorIs(t, err, catalog.ErrVersionConflict)
	assert.Equal(t, 0, uow.catalog.skus["s1"].Reserved)
}

func TestCancelOrder_ReleasesReservations(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 2, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow, WithClock(fixedClock()))
	o, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)
	require.Equal(t, 2, uow.catalog.skus["s1"].Reserved)

	cancelled, err := svc.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, uow.catalog.skus["s1"].Reserved)
	assert.Equal(t, 10, uow.catalog.skus["s1"].Stock)
}

func TestCancelOrder_TwiceFails(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 2, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow)
	o, err := svc.CreateOrderFromCart(context.Background(), PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), o.ID)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)

	// The double cancel must not release stock again.
	assert.Equal(t, 0, uow.catalog.skus["s1"].Reserved)
}

func TestCancelOrder_NotFound(t *testing.T) {
	svc := NewService(newFakeUnitOfWork())

	_, err := svc.CancelOrder(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLifecycleOperations(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow)
	ctx := context.Background()
	o, err := svc.CreateOrderFromCart(ctx, PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)

	for _, step := range []struct {
		op   func(context.Context, string) (*Order, error)
		want Status
	}{
		{svc.ConfirmOrder, StatusConfirmed},
		{svc.ProcessOrder, StatusProcessing},
		{svc.ShipOrder, StatusShipped},
		{svc.DeliverOrder, StatusDelivered},
		{svc.RefundOrder, StatusRefunded},
	} {
		got, err := step.op(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, step.want, got.Status)
	}

	// Persisted status matches the final transition.
	final, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, final.Status)
}

func TestLifecycle_IllegalStepDoesNotPersist(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow)
	ctx := context.Background()
	o, err := svc.CreateOrderFromCart(ctx, PlaceOrderRequest{CustomerID: "cust1"})
	require.NoError(t, err)

	_, err = svc.ShipOrder(ctx, o.ID)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestUpdateShippingAddressAndNotes(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 10))
	seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("25.00", "USD")})

	svc := NewService(uow)
	ctx := context.Background()
	o, err := svc.CreateOrderFromCart(ctx, PlaceOrderRequest{CustomerID: "cust1", ShippingAddress: "1 Main St"})
	require.NoError(t, err)

	got, err := svc.UpdateShippingAddress(ctx, o.ID, "2 Elm St")
	require.NoError(t, err)
	assert.Equal(t, "2 Elm St", got.ShippingAddress)

	got, err = svc.UpdateNotes(ctx, o.ID, "leave at door")
	require.NoError(t, err)
	assert.Equal(t, "leave at door", got.Notes)
}

func TestListOrders_FiltersByStatus(t *testing.T) {
	uow := newFakeUnitOfWork(testSku("s1", "WIDGET", "25.00", 100))
	svc := NewService(uow)
	ctx := context.Background()

	var ids []string
	for range 3 {
		seedCart(t, uow, "cust1", cart.Item{SkuID: "s1", Quantity: 1, UnitPrice: money.MustParse("25.00", "USD")})
		o, err := svc.CreateOrderFromCart(ctx, PlaceOrderRequest{CustomerID: "cust1"})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := svc.ConfirmOrder(ctx, ids[0])
	require.NoError(t, err)

	all, err := svc.ListOrders(ctx, "cust1", "", Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	confirmed, err := svc.ListOrders(ctx, "cust1", StatusConfirmed, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, ids[0], confirmed[0].ID)
}
