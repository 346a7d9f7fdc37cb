package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/catalog"
	"github.com/alfoods/storefront/internal/domain/pricing"
)

// tierView is one priced weight option in product responses. DiscountedPrice
// is present only while a discount window is open.
type tierView struct {
	Weight          string           `json:"weight"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
}

type productView struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	Description     string           `json:"description,omitempty"`
	Image           string           `json:"image,omitempty"`
	Tag             string           `json:"tag,omitempty"`
	BestSeller      bool             `json:"best_seller"`
	New             bool             `json:"new"`
	PriceTiers      []tierView       `json:"price_tiers"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountExpiry  *string          `json:"discount_expiry,omitempty"`
	StockCount      *int32           `json:"stock_count,omitempty"`
	OutOfStock      bool             `json:"out_of_stock"`
	AvailableCities []string         `json:"available_cities,omitempty"`
}

func (h *Handler) toProductView(p *catalog.Product) productView {
	quotes, active := pricing.Quote(p, h.now())

	tiers := make([]tierView, len(quotes))
	for i, q := range quotes {
		tiers[i] = tierView{Weight: q.WeightLabel, Price: q.Original}
		if active {
			d := q.Discounted
			tiers[i].DiscountedPrice = &d
		}
	}

	v := productView{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		Description:     p.Description,
		Image:           p.Image,
		Tag:             p.Tag,
		BestSeller:      p.BestSeller,
		New:             p.New,
		PriceTiers:      tiers,
		StockCount:      p.StockCount,
		OutOfStock:      p.OutOfStock,
		AvailableCities: p.AvailableCities,
	}
	if active {
		v.DiscountPercent = p.DiscountPercent
		v.DiscountExpiry = p.DiscountExpiry
	}
	return v
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	views := make([]productView, len(products))
	for i := range products {
		views[i] = h.toProductView(&products[i])
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.toProductView(p))
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent decimal.Decimal `json:"percent"`
		Expiry  string          `json:"expiry"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := pricing.ValidateDiscount(req.Percent, req.Expiry, h.now()); err != nil {
		respondDomainError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if err := h.products.SetDiscount(r.Context(), id, req.Percent, req.Expiry); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) clearDiscount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.products.ClearDiscount(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) setInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockCount int32 `json:"stock_count"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StockCount < 0 {
		respondError(w, http.StatusBadRequest, "stock_count must not be negative")
		return
	}

	id := r.PathValue("id")
	if err := h.products.SetStock(r.Context(), id, req.StockCount); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) setStockStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutOfStock bool `json:"out_of_stock"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if err := h.products.SetOutOfStock(r.Context(), id, req.OutOfStock); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) setAvailableCities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cities []string `json:"cities"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if err := h.products.SetAvailableCities(r.Context(), id, req.Cities); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}
