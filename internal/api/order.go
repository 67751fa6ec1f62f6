package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/domain/order"
)

type orderResponse struct {
	ID              string       `json:"id"`
	CustomerID      string       `json:"customer_id"`
	Status          order.Status `json:"status"`
	Items           []order.Item `json:"items"`
	Subtotal        money.Money  `json:"subtotal"`
	TaxAmount       money.Money  `json:"tax_amount"`
	ShippingAmount  money.Money  `json:"shipping_amount"`
	TotalAmount     money.Money  `json:"total_amount"`
	OrderDate       time.Time    `json:"order_date"`
	ShippingAddress string       `json:"shipping_address,omitempty"`
	BillingAddress  string       `json:"billing_address,omitempty"`
	Notes           string       `json:"notes,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		TaxAmount:       o.TaxAmount,
		ShippingAmount:  o.ShippingAmount,
		TotalAmount:     o.TotalAmount,
		OrderDate:       o.OrderDate,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Notes:           o.Notes,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	var req struct {
		ShippingAddress string `json:"shipping_address"`
		BillingAddress  string `json:"billing_address"`
		Notes           string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	o, err := h.orders.CreateOrderFromCart(r.Context(), order.PlaceOrderRequest{
		CustomerID:      customerID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The cart was deactivated by the workflow.
	h.evict(r, cartCacheKey(customerID))
	h.writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := order.Status(r.URL.Query().Get("status"))

	out, err := h.orders.ListOrders(r.Context(), r.PathValue("customerID"), status, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, 0, len(out))
	for i := range out {
		resp = append(resp, toOrderResponse(&out[i]))
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// transitionOrder adapts one lifecycle operation into a handler.
func (h *Handler) transitionOrder(op func(*order.Service, context.Context, string) (*order.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := op(h.orders, r.Context(), r.PathValue("id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
	}
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress string `json:"shipping_address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	o, err := h.orders.UpdateShippingAddress(r.Context(), r.PathValue("id"), req.ShippingAddress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateOrderNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	o, err := h.orders.UpdateNotes(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func parsePage(r *http.Request) (order.Page, error) {
	var page order.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"offset": &page.Offset, "limit": &page.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return order.Page{}, badRequestf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return page, nil
}
