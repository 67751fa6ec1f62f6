package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/domain/order"
)

func seedSku(t *testing.T, s *Store, id, code string, price string, stock int) {
	t.Helper()
	err := s.Catalog().CreateSku(context.Background(), &catalog.Sku{
		ID:         id,
		Code:       code,
		Name:       code,
		Price:      money.MustParse(price, "USD"),
		Stock:      stock,
		TrackStock: true,
		Active:     true,
	})
	require.NoError(t, err)
}

func TestCatalogCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Catalog().CreateProduct(ctx, &catalog.Product{ID: "p1", Name: "Widgets", Active: true}))
	seedSku(t, s, "s1", "WIDGET-L", "10.00", 5)

	got, err := s.Catalog().GetSkuByCode(ctx, "WIDGET-L")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, int64(1), got.Version)

	_, err = s.Catalog().GetSku(ctx, "ghost")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	products, err := s.Catalog().ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.False(t, products[0].CreatedAt.IsZero())
}

func TestCreateSku_DuplicateCode(t *testing.T) {
	s := NewStore()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	err := s.Catalog().CreateSku(context.Background(), &catalog.Sku{ID: "s2", Code: "WIDGET"})
	require.Error(t, err)
}

func TestUpdateSku_VersionChecked(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	sku, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)

	stale := *sku
	sku.Name = "Widget L"
	require.NoError(t, s.Catalog().UpdateSku(ctx, sku))
	assert.Equal(t, int64(2), sku.Version)

	stale.Name = "Widget XL"
	require.ErrorIs(t, s.Catalog().UpdateSku(ctx, &stale), catalog.ErrVersionConflict)

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Widget L", got.Name)
}

func TestUpdateSku_DoesNotWriteStock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	sku, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	sku.Stock = 999
	sku.Reserved = 999
	require.NoError(t, s.Catalog().UpdateSku(ctx, sku))

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.Equal(t, 0, got.Reserved)
}

func TestStockLedger(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)
	cat := s.Catalog()

	require.NoError(t, cat.ReserveStock(ctx, "s1", 3))
	require.NoError(t, cat.ReleaseReservedStock(ctx, "s1", 1))
	require.NoError(t, cat.ConsumeReservedStock(ctx, "s1", 2))

	got, err := cat.GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, 0, got.Reserved)
	assert.Equal(t, int64(4), got.Version) // create + three ledger writes

	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, cat.ReserveStock(ctx, "s1", 4), &stockErr)
}

func TestCartRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	carts := s.Carts()

	c := cart.New("c1", "cust1")
	require.NoError(t, c.AddItem("s1", 2, money.MustParse("10.00", "USD")))
	require.NoError(t, carts.Save(ctx, c))

	got, err := carts.FindActiveByCustomer(ctx, "cust1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	require.Len(t, got.Items, 1)

	require.NoError(t, carts.Deactivate(ctx, "cust1"))
	_, err = carts.FindActiveByCustomer(ctx, "cust1")
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestOrdersNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orders := s.Orders()

	for _, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, orders.Save(ctx, &order.Order{ID: id, CustomerID: "cust1", Status: order.StatusPending}))
	}
	require.NoError(t, orders.Save(ctx, &order.Order{ID: "other", CustomerID: "cust2", Status: order.StatusPending}))

	got, err := orders.ListByCustomer(ctx, "cust1", order.Page{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "o3", got[0].ID)
	assert.Equal(t, "o1", got[2].ID)

	paged, err := orders.ListByCustomer(ctx, "cust1", order.Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "o2", paged[0].ID)
}

func TestDo_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	boom := errors.New("boom")
	err := s.Do(ctx, func(ctx context.Context, tx order.Stores) error {
		if err := tx.Catalog.ReserveStock(ctx, "s1", 3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Reserved)
	assert.Equal(t, int64(1), got.Version)
}

func TestDo_ReadsAreRepeatable(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	err := s.Do(ctx, func(ctx context.Context, tx order.Stores) error {
		if err := tx.Catalog.ReserveStock(ctx, "s1", 2); err != nil {
			return err
		}
		got, err := tx.Catalog.GetSku(ctx, "s1")
		if err != nil {
			return err
		}
		// Own writes visible inside the transaction.
		assert.Equal(t, 2, got.Reserved)

		// Not visible outside before commit.
		outside, err := s.Catalog().GetSku(ctx, "s1")
		if err != nil {
			return err
		}
		assert.Equal(t, 0, outside.Reserved)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Reserved)
}

func TestDo_ConflictOnConcurrentSkuWrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)

	// A concurrent writer lands on the same SKU between this transaction's
	// snapshot and its commit, so the commit must fail.
	err := s.Do(ctx, func(ctx context.Context, tx order.Stores) error {
		if err := tx.Catalog.ReserveStock(ctx, "s1", 1); err != nil {
			return err
		}
		return s.Catalog().ReserveStock(ctx, "s1", 1)
	})
	require.ErrorIs(t, err, catalog.ErrVersionConflict)

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reserved) // only the concurrent autocommit survived
}

func TestDo_DisjointCommitsBothSurvive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "10.00", 5)
	seedSku(t, s, "s2", "GADGET", "5.00", 5)

	err := s.Do(ctx, func(ctx context.Context, tx order.Stores) error {
		if err := tx.Catalog.ReserveStock(ctx, "s1", 1); err != nil {
			return err
		}
		// A commit on a different SKU while this txn is open must not
		// clobber or conflict.
		return s.Catalog().ReserveStock(ctx, "s2", 2)
	})
	require.NoError(t, err)

	s1, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	s2, err := s.Catalog().GetSku(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Reserved)
	assert.Equal(t, 2, s2.Reserved)
}

// Two customers race the last unit through the full placement workflow:
// exactly one order is created and the ledger never oversells.
func TestPlacementRace_LastUnit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSku(t, s, "s1", "WIDGET", "25.00", 1)

	price := money.MustParse("25.00", "USD")
	for _, customerID := range []string{"alice", "bob"} {
		c := cart.New("c-"+customerID, customerID)
		require.NoError(t, c.AddItem("s1", 1, price))
		require.NoError(t, s.Carts().Save(ctx, c))
	}

	svc := order.NewService(s)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, customerID := range []string{"alice", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrderFromCart(ctx, order.PlaceOrderRequest{CustomerID: customerID})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		losses++
		var stockErr *catalog.InsufficientStockError
		if !errors.As(err, &stockErr) {
			require.ErrorIs(t, err, catalog.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	got, err := s.Catalog().GetSku(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reserved)
	assert.Equal(t, 1, got.Stock)
}
