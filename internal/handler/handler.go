// Package handler exposes the storefront HTTP API: public catalog and
// checkout routes plus the API-key gated admin surface.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/alfoods/storefront/internal/domain/catalog"
	"github.com/alfoods/storefront/internal/domain/customer"
	"github.com/alfoods/storefront/internal/domain/delivery"
	"github.com/alfoods/storefront/internal/domain/order"
	"github.com/alfoods/storefront/internal/domain/pricing"
)

// CoverageChecker reports pincode serviceability. Advisory only: checkout
// never blocks on it.
type CoverageChecker interface {
	Serviceable(ctx context.Context, pincode string) (bool, error)
}

// Handler serves the storefront API, delegating business logic to the domain
// services and repositories.
type Handler struct {
	products     catalog.Repository
	orderService *order.Service
	cities       delivery.Repository
	states       delivery.StateRepository
	profiles     customer.Repository
	coverage     CoverageChecker
	security     *SecurityHandler

	now func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	orderService *order.Service,
	cities delivery.Repository,
	states delivery.StateRepository,
	profiles customer.Repository,
	coverage CoverageChecker,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		products:     products,
		orderService: orderService,
		cities:       cities,
		states:       states,
		profiles:     profiles,
		coverage:     coverage,
		security:     security,
		now:          time.Now,
	}
}

// Routes registers every API route on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	// Public surface.
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/track/{identifier}", h.trackOrder)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/locations", h.listLocations)
	mux.HandleFunc("GET /api/states", h.listStates)
	mux.HandleFunc("GET /api/user-details/{identifier}", h.userDetails)
	mux.HandleFunc("GET /api/coverage/{pincode}", h.checkCoverage)

	// Admin surface behind the API key gate.
	admin := h.security.Require
	mux.HandleFunc("GET /api/orders", admin(h.listOrders))
	mux.HandleFunc("GET /api/orders/user/{userID}", admin(h.listOrdersByUser))
	mux.HandleFunc("GET /api/orders/analytics/summary", admin(h.analyticsSummary))
	mux.HandleFunc("PUT /api/orders/{orderCode}/status", admin(h.updateOrderStatus))
	mux.HandleFunc("PUT /api/orders/{orderCode}/cancel", admin(h.cancelOrder))
	mux.HandleFunc("PUT /api/orders/{orderCode}/admin-update", admin(h.adminUpdateOrder))
	mux.HandleFunc("POST /api/admin/products/{id}/discount", admin(h.setDiscount))
	mux.HandleFunc("DELETE /api/admin/products/{id}/discount", admin(h.clearDiscount))
	mux.HandleFunc("PUT /api/admin/products/{id}/inventory", admin(h.setInventory))
	mux.HandleFunc("PUT /api/admin/products/{id}/stock-status", admin(h.setStockStatus))
	mux.HandleFunc("PUT /api/admin/products/{id}/available-cities", admin(h.setAvailableCities))
	mux.HandleFunc("PUT /api/admin/locations/{city}", admin(h.upsertLocation))
	mux.HandleFunc("DELETE /api/admin/locations/{city}", admin(h.deleteLocation))
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, errorBody{Code: status, Message: message})
}

// respondDomainError maps domain errors onto HTTP statuses: validation
// failures are 400 with the item-naming message, missing records 404, and
// everything else a logged 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing      *order.ProductMissingError
		outOfStock   *order.OutOfStockError
		insufficient *order.InsufficientStockError
		restricted   *order.CityRestrictedError
		quantity     *order.InvalidQuantityError
		field        *order.MissingFieldError
		transition   *order.InvalidTransitionError
		unknown      *order.UnknownStatusError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrEmptyUpdate),
		errors.Is(err, pricing.ErrInvalidPercent),
		errors.Is(err, pricing.ErrInvalidExpiry),
		errors.Is(err, pricing.ErrExpiryInPast),
		errors.As(err, &missing),
		errors.As(err, &outOfStock),
		errors.As(err, &insufficient),
		errors.As(err, &restricted),
		errors.As(err, &quantity),
		errors.As(err, &field),
		errors.As(err, &transition),
		errors.As(err, &unknown):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
