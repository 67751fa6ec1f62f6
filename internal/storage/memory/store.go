// Package memory is an in-process store keeping every aggregate in maps. It
// backs tests, the seed tool, and single-node deployments that run without
// PostgreSQL. Transactions run against a snapshot and commit with a version
// check on every SKU they touched, so optimistic-concurrency behavior matches
// the SQL store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

// Store holds all aggregates behind one lock.
type Store struct {
	mu  sync.RWMutex
	d   *data
	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{d: newData(), now: time.Now}
}

// WithClock replaces the wall clock used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Catalog returns an autocommit catalog repository: every call is its own
// transaction.
func (s *Store) Catalog() catalog.Repository { return &autoCatalog{s: s} }

// Carts returns an autocommit cart repository.
func (s *Store) Carts() cart.Repository { return &autoCarts{s: s} }

// Orders returns an autocommit order repository.
func (s *Store) Orders() order.Repository { return &autoOrders{s: s} }

var _ order.UnitOfWork = (*Store)(nil)

// Do runs fn against a snapshot of the store. Reads inside fn are
// repeatable; writes stay private to the snapshot until commit. At commit
// every SKU the transaction wrote is compared against the live store by
// version — if any changed underneath, nothing is applied and Do returns
// catalog.ErrVersionConflict. When fn returns an error the snapshot is
// discarded wholesale.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, stores order.Stores) error) error {
	s.mu.RLock()
	snap := s.d.clone()
	s.mu.RUnlock()

	t := &txn{d: snap, now: s.now}
	err := fn(ctx, order.Stores{
		Catalog: &txCatalog{t},
		Carts:   &txCarts{t},
		Orders:  &txOrders{t},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range t.skuBase {
		live, ok := s.d.skus[id]
		if !ok || live.Version != base {
			return catalog.ErrVersionConflict
		}
	}
	for id := range t.skuCreated {
		if _, ok := s.d.skus[id]; ok {
			return catalog.ErrVersionConflict
		}
	}

	t.applyTo(s.d)
	return nil
}

// txn is one in-flight transaction: a private snapshot plus dirty tracking
// for the commit.
type txn struct {
	d   *data
	now func() time.Time

	// skuBase records, per written SKU, the live version the snapshot was
	// taken at. skuCreated marks SKUs that must still be absent at commit.
	skuBase    map[string]int64
	skuCreated map[string]bool

	dirtyProducts map[string]bool
	dirtySkus     map[string]bool
	dirtyCarts    map[string]bool // cart IDs
	dirtyActive   map[string]bool // customer IDs whose active-cart link changed
	dirtyOrders   map[string]bool
}

func (t *txn) touchSku(id string) {
	if t.skuBase == nil {
		t.skuBase = make(map[string]int64)
	}
	if t.dirtySkus == nil {
		t.dirtySkus = make(map[string]bool)
	}
	if _, seen := t.skuBase[id]; !seen && !t.skuCreated[id] {
		t.skuBase[id] = t.d.skus[id].Version
	}
	t.dirtySkus[id] = true
}

func (t *txn) createSku(id string) {
	if t.skuCreated == nil {
		t.skuCreated = make(map[string]bool)
	}
	if t.dirtySkus == nil {
		t.dirtySkus = make(map[string]bool)
	}
	t.skuCreated[id] = true
	t.dirtySkus[id] = true
}

func (t *txn) touchProduct(id string) {
	if t.dirtyProducts == nil {
		t.dirtyProducts = make(map[string]bool)
	}
	t.dirtyProducts[id] = true
}

func (t *txn) touchCart(cartID, customerID string) {
	if t.dirtyCarts == nil {
		t.dirtyCarts = make(map[string]bool)
		t.dirtyActive = make(map[string]bool)
	}
	t.dirtyCarts[cartID] = true
	t.dirtyActive[customerID] = true
}

func (t *txn) touchOrder(id string) {
	if t.dirtyOrders == nil {
		t.dirtyOrders = make(map[string]bool)
	}
	t.dirtyOrders[id] = true
}

// applyTo copies only the entities the transaction wrote into the live
// store, so concurrent commits on disjoint data both survive.
func (t *txn) applyTo(live *data) {
	for id := range t.dirtyProducts {
		p := t.d.products[id]
		if _, existed := live.products[id]; !existed {
			live.productIDs = append(live.productIDs, id)
		}
		live.products[id] = p
	}
	for id := range t.dirtySkus {
		sku := t.d.skus[id]
		live.skus[id] = cloneSku(sku)
		live.skuIDByCode[sku.Code] = id
	}
	for id := range t.dirtyCarts {
		live.carts[id] = cloneCart(t.d.carts[id])
	}
	for customerID := range t.dirtyActive {
		if cartID, ok := t.d.activeCart[customerID]; ok {
			live.activeCart[customerID] = cartID
		} else {
			delete(live.activeCart, customerID)
		}
	}
	for id := range t.dirtyOrders {
		if _, existed := live.orders[id]; !existed {
			live.orderIDs = append(live.orderIDs, id)
		}
		live.orders[id] = cloneOrder(t.d.orders[id])
	}
}

// data is the raw aggregate state. All access goes through Store or txn.
type data struct {
	products    map[string]catalog.Product
	productIDs  []string // insertion order
	skus        map[string]catalog.Sku
	skuIDByCode map[string]string
	carts       map[string]cart.Cart // by cart ID
	activeCart  map[string]string    // customer ID -> active cart ID
	orders      map[string]order.Order
	orderIDs    []string // insertion order, oldest first
}

func newData() *data {
	return &data{
		products:    make(map[string]catalog.Product),
		skus:        make(map[string]catalog.Sku),
		skuIDByCode: make(map[string]string),
		carts:       make(map[string]cart.Cart),
		activeCart:  make(map[string]string),
		orders:      make(map[string]order.Order),
	}
}

func (d *data) clone() *data {
	out := &data{
		products:    make(map[string]catalog.Product, len(d.products)),
		productIDs:  append([]string(nil), d.productIDs...),
		skus:        make(map[string]catalog.Sku, len(d.skus)),
		skuIDByCode: make(map[string]string, len(d.skuIDByCode)),
		carts:       make(map[string]cart.Cart, len(d.carts)),
		activeCart:  make(map[string]string, len(d.activeCart)),
		orders:      make(map[string]order.Order, len(d.orders)),
		orderIDs:    append([]string(nil), d.orderIDs...),
	}
	for id, p := range d.products {
		out.products[id] = p
	}
	for id, s := range d.skus {
		out.skus[id] = cloneSku(s)
	}
	for code, id := range d.skuIDByCode {
		out.skuIDByCode[code] = id
	}
	for id, c := range d.carts {
		out.carts[id] = cloneCart(c)
	}
	for customerID, cartID := range d.activeCart {
		out.activeCart[customerID] = cartID
	}
	for id, o := range d.orders {
		out.orders[id] = cloneOrder(o)
	}
	return out
}

func cloneSku(s catalog.Sku) catalog.Sku { return s }

func cloneCart(c cart.Cart) cart.Cart {
	c.Items = append([]cart.Item(nil), c.Items...)
	return c
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return o
}
