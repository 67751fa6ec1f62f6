package api

import (
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
)

const productsCacheKey = "catalog:products"

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type skuResponse struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Price       money.Money `json:"price"`
	Stock       int         `json:"stock"`
	Reserved    int         `json:"reserved"`
	Available   int         `json:"available"`
	TrackStock  bool        `json:"track_stock"`
	Active      bool        `json:"active"`
	Version     int64       `json:"version"`
}

func toProductResponse(p catalog.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
}

func toSkuResponse(s *catalog.Sku) skuResponse {
	return skuResponse{
		ID:          s.ID,
		Code:        s.Code,
		Name:        s.Name,
		Description: s.Description,
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Price:       s.Price,
		Stock:       s.Stock,
		Reserved:    s.Reserved,
		Available:   s.Available(),
		TrackStock:  s.TrackStock,
		Active:      s.Active,
		Version:     s.Version,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}
	if req.Name == "" {
		h.writeError(w, r, missingFields("name"))
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), catalog.CreateProductRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.evict(r, productsCacheKey)
	h.writeJSON(w, r, http.StatusCreated, toProductResponse(*p))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r, productsCacheKey) {
		return
	}

	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	h.writeCached(w, r, productsCacheKey, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toProductResponse(*p))
}

func (h *Handler) createSku(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   string      `json:"product_id"`
		Code        string      `json:"code"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Price       money.Money `json:"price"`
		TrackStock  *bool       `json:"track_stock"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}
	if req.ProductID == "" || req.Code == "" || req.Name == "" {
		var missing []string
		for field, val := range map[string]string{
			"product_id": req.ProductID, "code": req.Code, "name": req.Name,
		} {
			if val == "" {
				missing = append(missing, field)
			}
		}
		h.writeError(w, r, missingFields(missing...))
		return
	}
	trackStock := true
	if req.TrackStock != nil {
		trackStock = *req.TrackStock
	}

	s, err := h.catalog.CreateSku(r.Context(), catalog.CreateSkuRequest{
		ProductID:   req.ProductID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		TrackStock:  trackStock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toSkuResponse(s))
}

func (h *Handler) getSku(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.GetSku(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSkuResponse(s))
}

func (h *Handler) getSkuByCode(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.GetSkuByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSkuResponse(s))
}

func (h *Handler) updateSkuPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price money.Money `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	s, err := h.catalog.UpdatePrice(r.Context(), r.PathValue("id"), req.Price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSkuResponse(s))
}

func (h *Handler) restockSku(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	s, err := h.catalog.Restock(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSkuResponse(s))
}

func (h *Handler) setSkuActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, badRequestf("decode body"))
		return
	}

	s, err := h.catalog.SetSkuActive(r.Context(), r.PathValue("id"), req.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSkuResponse(s))
}
