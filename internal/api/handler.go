// Package api exposes the storefront over HTTP with JSON bodies. Routes are
// registered on a stdlib mux with method patterns; business rules live in
// the domain services, the handlers only translate.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

// cacheTTL bounds staleness of cached read responses between evictions.
const cacheTTL = 5 * time.Minute

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// DefaultCurrency denominates empty-cart totals and incoming amounts
	// that carry no currency of their own.
	DefaultCurrency string
}

// Handler wires the domain services to HTTP routes.
type Handler struct {
	catalog  *catalog.Service
	carts    *cart.Service
	orders   *order.Service
	cache    cache.Cache
	currency string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	catalogSvc *catalog.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	c cache.Cache,
) *Handler {
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}
	return &Handler{
		catalog:  catalogSvc,
		carts:    cartSvc,
		orders:   orderSvc,
		cache:    c,
		currency: currency,
	}
}

// Register adds all API routes to mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/skus", h.createSku)
	mux.HandleFunc("GET /api/skus/{id}", h.getSku)
	mux.HandleFunc("GET /api/skus/code/{code}", h.getSkuByCode)
	mux.HandleFunc("PUT /api/skus/{id}/price", h.updateSkuPrice)
	mux.HandleFunc("PUT /api/skus/{id}/stock", h.restockSku)
	mux.HandleFunc("PUT /api/skus/{id}/active", h.setSkuActive)

	mux.HandleFunc("GET /api/customers/{customerID}/cart", h.getCart)
	mux.HandleFunc("POST /api/customers/{customerID}/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/customers/{customerID}/cart/items/{skuID}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/customers/{customerID}/cart/items/{skuID}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/customers/{customerID}/cart", h.clearCart)

	mux.HandleFunc("POST /api/customers/{customerID}/orders", h.placeOrder)
	mux.HandleFunc("GET /api/customers/{customerID}/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/confirm", h.transitionOrder((*order.Service).ConfirmOrder))
	mux.HandleFunc("POST /api/orders/{id}/process", h.transitionOrder((*order.Service).ProcessOrder))
	mux.HandleFunc("POST /api/orders/{id}/ship", h.transitionOrder((*order.Service).ShipOrder))
	mux.HandleFunc("POST /api/orders/{id}/deliver", h.transitionOrder((*order.Service).DeliverOrder))
	mux.HandleFunc("POST /api/orders/{id}/refund", h.transitionOrder((*order.Service).RefundOrder))
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("PUT /api/orders/{id}/shipping-address", h.updateShippingAddress)
	mux.HandleFunc("PUT /api/orders/{id}/notes", h.updateOrderNotes)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
