package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/domain/order"
)

// Error kinds carried in responses. Clients branch on the kind, not the
// message: "concurrency" is the only retryable one.
const (
	kindValidation    = "validation"
	kindNotFound      = "not_found"
	kindStateConflict = "state_conflict"
	kindConcurrency   = "concurrency"
	kindInternal      = "internal"
)

type errorBody struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps a domain error onto an HTTP status and error kind.
// Unrecognized errors are logged and returned as an opaque 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if kind == kindInternal {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	body := errorBody{Kind: kind, Message: msg}
	var fe *fieldError
	if errors.As(err, &fe) {
		body.Fields = fe.fields
	}
	h.writeJSON(w, r, status, errorResponse{Error: body})
}

func classify(err error) (int, string) {
	var (
		insufficient *catalog.InsufficientStockError
		illegal      *order.IllegalTransitionError
		skuInactive  *order.SkuInactiveError
		cartInactive *cart.SkuInactiveError
		addrLocked   *order.AddressLockedError
		skuMissing   *order.SkuNotFoundError
	)
	switch {
	case errors.Is(err, catalog.ErrVersionConflict):
		return http.StatusConflict, kindConcurrency

	case errors.As(err, &insufficient),
		errors.As(err, &illegal),
		errors.As(err, &skuInactive),
		errors.As(err, &cartInactive),
		errors.As(err, &addrLocked),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, catalog.ErrOverRelease),
		errors.Is(err, catalog.ErrOverConsume):
		return http.StatusConflict, kindStateConflict

	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrCartNotFound),
		errors.As(err, &skuMissing):
		return http.StatusNotFound, kindNotFound

	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrNegativeStock),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, kindValidation

	default:
		return http.StatusInternalServerError, kindInternal
	}
}

// errBadRequest marks malformed input detected by the handlers themselves
// (unparseable bodies, bad query parameters).
var errBadRequest = errors.New("bad request")

func badRequestf(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// fieldError is a validation failure attributed to specific request fields.
type fieldError struct {
	fields map[string]string
}

func (e *fieldError) Error() string {
	names := make([]string, 0, len(e.fields))
	for f := range e.fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, f := range names {
		parts[i] = f + ": " + e.fields[f]
	}
	return strings.Join(parts, "; ")
}

func (e *fieldError) Unwrap() error { return errBadRequest }

// missingFields reports the named required fields as absent.
func missingFields(names ...string) error {
	fields := make(map[string]string, len(names))
	for _, n := range names {
		fields[n] = "required"
	}
	return &fieldError{fields: fields}
}
