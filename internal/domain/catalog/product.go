// Package catalog holds the product model and the read/mutate contracts the
// order core depends on. Catalog CRUD itself lives behind the Repository
// boundary; the core only reads products and adjusts stock/discount fields.
package catalog

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// PriceTier is one weight/price option of a product. Tier order is the
// display order and is preserved through storage.
type PriceTier struct {
	WeightLabel string
	UnitPrice   decimal.Decimal
}

// Product is a catalog item. StockCount of nil means unlimited stock;
// an empty AvailableCities list means the product ships everywhere.
type Product struct {
	ID          string
	Name        string
	Category    string
	Description string
	Image       string
	Tag         string
	BestSeller  bool
	New         bool

	PriceTiers []PriceTier

	// DiscountPercent and DiscountExpiry describe the promotional window.
	// Expiry is kept as the stored string and parsed lazily: a malformed
	// value must render the discount inactive, not fail catalog reads.
	DiscountPercent *decimal.Decimal
	DiscountExpiry  *string

	StockCount      *int32
	OutOfStock      bool
	AvailableCities []string
}

// AvailableIn reports whether the product can be delivered to city.
func (p *Product) AvailableIn(city string) bool {
	if len(p.AvailableCities) == 0 {
		return true
	}
	return slices.Contains(p.AvailableCities, city)
}

// TierPrice returns the unit price for the given weight label.
func (p *Product) TierPrice(weightLabel string) (decimal.Decimal, bool) {
	for _, t := range p.PriceTiers {
		if t.WeightLabel == weightLabel {
			return t.UnitPrice, true
		}
	}
	return decimal.Zero, false
}

// Repository defines catalog operations. List with an empty city returns the
// full catalog; a non-empty city filters by the availability allow-list.
type Repository interface {
	List(ctx context.Context, city string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Upsert(ctx context.Context, p *Product) error

	SetDiscount(ctx context.Context, id string, percent decimal.Decimal, expiry string) error
	ClearDiscount(ctx context.Context, id string) error
	SetStock(ctx context.Context, id string, count int32) error
	SetOutOfStock(ctx context.Context, id string, outOfStock bool) error
	SetAvailableCities(ctx context.Context, id string, cities []string) error
}
