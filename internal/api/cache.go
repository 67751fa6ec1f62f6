package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

func cartCacheKey(customerID string) string {
	return "cart:" + customerID
}

// serveCached writes a cached response for key and reports whether it did.
// Cache failures degrade to a normal read, never to a request failure.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	body, ok, err := h.cache.Get(r.Context(), key)
	if err != nil {
		zctx.From(r.Context()).Warn("Cache get", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "hit")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return true
}

// writeCached responds with v and stores the rendered body under key.
func (h *Handler) writeCached(w http.ResponseWriter, r *http.Request, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.cache.Set(r.Context(), key, body, cacheTTL); err != nil {
		zctx.From(r.Context()).Warn("Cache set", zap.String("key", key), zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) evict(r *http.Request, keys ...string) {
	if err := h.cache.Delete(r.Context(), keys...); err != nil {
		zctx.From(r.Context()).Warn("Cache evict", zap.Strings("keys", keys), zap.Error(err))
	}
}
