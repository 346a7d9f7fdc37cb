package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/delivery"
)

// locationView is one city's delivery settings in responses.
type locationView struct {
	Name                  string           `json:"name"`
	DeliveryCharge        decimal.Decimal  `json:"delivery_charge"`
	FreeDeliveryThreshold *decimal.Decimal `json:"free_delivery_threshold,omitempty"`
	State                 string           `json:"state"`
}

func toLocationViews(cities []delivery.CitySettings) []locationView {
	views := make([]locationView, len(cities))
	for i, c := range cities {
		views[i] = locationView{
			Name:                  c.Name,
			DeliveryCharge:        c.BaseCharge,
			FreeDeliveryThreshold: c.FreeDeliveryThreshold,
			State:                 c.State,
		}
	}
	return views
}

// listLocations returns the configured delivery cities, falling back to the
// built-in defaults while the table is empty.
func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	cities, err := h.cities.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if len(cities) == 0 {
		cities = delivery.DefaultCities()
	}
	respond(w, http.StatusOK, toLocationViews(cities))
}

func (h *Handler) listStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.states.ListStates(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if len(states) == 0 {
		states = delivery.DefaultStates()
	}

	type stateView struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}
	views := make([]stateView, len(states))
	for i, s := range states {
		views[i] = stateView{Name: s.Name, Enabled: s.Enabled}
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) upsertLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeliveryCharge        decimal.Decimal  `json:"delivery_charge"`
		FreeDeliveryThreshold *decimal.Decimal `json:"free_delivery_threshold"`
		State                 string           `json:"state"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeliveryCharge.IsNegative() {
		respondError(w, http.StatusBadRequest, "delivery_charge must not be negative")
		return
	}

	city := r.PathValue("city")
	err := h.cities.Upsert(r.Context(), &delivery.CitySettings{
		Name:                  city,
		BaseCharge:            req.DeliveryCharge,
		FreeDeliveryThreshold: req.FreeDeliveryThreshold,
		State:                 req.State,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"name": city})
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	if err := h.cities.Delete(r.Context(), city); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"name": city})
}

// userDetails returns the cached checkout profile for a phone number or
// email, used to pre-fill the checkout form.
func (h *Handler) userDetails(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), r.PathValue("identifier"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"customer_name": p.CustomerName,
		"email":         p.Email,
		"phone":         p.Phone,
		"door_no":       p.DoorNo,
		"building":      p.Building,
		"street":        p.Street,
		"city":          p.City,
		"state":         p.State,
		"pincode":       p.Pincode,
	})
}

func (h *Handler) checkCoverage(w http.ResponseWriter, r *http.Request) {
	pincode := r.PathValue("pincode")
	ok, err := h.coverage.Serviceable(r.Context(), pincode)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"pincode": pincode, "serviceable": ok})
}
