package api

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/money"
)

type cartResponse struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Items      []cart.Item `json:"items"`
	Total      money.Money `json:"total"`
	ItemCount  int         `json:"item_count"`
	Active     bool        `json:"active"`
}

func (h *Handler) toCartResponse(c *cart.Cart) (cartResponse, error) {
	total, err := c.Total(h.currency)
	if err != nil {
		return cartResponse{}, errors.Wrap(err, "cart total")
	}
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Items:      items,
		Total:      total,
		ItemCount:  c.TotalItemCount(),
		Active:     c.Active,
	}, nil
}

// writeCart renders the cart and refreshes its cache entry, so reads after
// a mutation hit the fresh copy.
func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	resp, err := h.toCartResponse(c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCached(w, r, cartCacheKey(c.CustomerID), resp)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	if h.serveCached(w, r, cartCacheKey(customerID)) {
		return
	}

	c, err := h.carts.GetCart(r.Context(), customerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r, c)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SkuID    string `json:"sku_id"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}
	if req.SkuID == "" {
		h.writeError(w, r, missingFields("sku_id"))
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("customerID"), req.SkuID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r, c)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), r.PathValue("customerID"), r.PathValue("skuID"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("customerID"), r.PathValue("skuID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.ClearCart(r.Context(), r.PathValue("customerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r, c)
}
