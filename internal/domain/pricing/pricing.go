// Package pricing computes promotional discount pricing for catalog reads
// and validates discount parameters on the administrative write path.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/catalog"
)

// MaxDiscountPercent is the upper bound accepted on the admin write path.
const MaxDiscountPercent = 70

var (
	// ErrInvalidPercent is returned when a discount percentage is outside [0, 70].
	ErrInvalidPercent = errors.New("discount must be between 0% and 70%")
	// ErrInvalidExpiry is returned when an expiry value cannot be parsed.
	ErrInvalidExpiry = errors.New("invalid expiry date format")
	// ErrExpiryInPast is returned when an expiry value is not in the future.
	ErrExpiryInPast = errors.New("expiry date must be in the future")
)

var (
	hundred    = decimal.NewFromInt(100)
	maxPercent = decimal.NewFromInt(MaxDiscountPercent)
)

const dateOnly = "2006-01-02"

// ParseExpiry parses a discount expiry value. Full RFC 3339 timestamps are
// accepted as-is; date-only values (YYYY-MM-DD) mean end of that day in UTC.
func ParseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidExpiry
	}
	return t.UTC(), nil
}

// Active reports whether the product's discount window is open at now.
// Missing fields, malformed expiry values, and out-of-range percentages
// (possible via manual edits) all read as inactive rather than erroring.
func Active(p *catalog.Product, now time.Time) bool {
	if p.DiscountPercent == nil || p.DiscountExpiry == nil {
		return false
	}
	pct := *p.DiscountPercent
	if pct.IsNegative() || pct.GreaterThan(maxPercent) {
		return false
	}
	expiry, err := ParseExpiry(*p.DiscountExpiry)
	if err != nil {
		return false
	}
	return now.UTC().Before(expiry)
}

// Discounted returns original*(1 - percent/100) rounded half-up to two
// decimal places.
func Discounted(original, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	return original.Mul(factor).Round(2)
}

// TierQuote is the priced view of one weight tier. Discounted equals
// Original when no discount window is open.
type TierQuote struct {
	WeightLabel string
	Original    decimal.Decimal
	Discounted  decimal.Decimal
}

// Quote prices every tier of the product at now. The second return reports
// whether a discount was applied.
func Quote(p *catalog.Product, now time.Time) ([]TierQuote, bool) {
	active := Active(p, now)
	quotes := make([]TierQuote, len(p.PriceTiers))
	for i, t := range p.PriceTiers {
		q := TierQuote{WeightLabel: t.WeightLabel, Original: t.UnitPrice, Discounted: t.UnitPrice}
		if active {
			q.Discounted = Discounted(t.UnitPrice, *p.DiscountPercent)
		}
		quotes[i] = q
	}
	return quotes, active
}

// LineTotal is unitPrice*quantity rounded to two decimal places.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ValidateDiscount checks a discount percent and expiry for the admin write
// path: percent within [0, 70], expiry parseable and strictly after now.
func ValidateDiscount(percent decimal.Decimal, expiry string, now time.Time) error {
	if percent.IsNegative() || percent.GreaterThan(maxPercent) {
		return ErrInvalidPercent
	}
	t, err := ParseExpiry(expiry)
	if err != nil {
		return err
	}
	if !t.After(now.UTC()) {
		return ErrExpiryInPast
	}
	return nil
}
