// Package delivery resolves per-city delivery charges and free-delivery
// thresholds for order checkout.
package delivery

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a city has no settings record.
var ErrNotFound = errors.New("city settings not found")

// DefaultCharge applies when the destination city has no settings record.
// Guest checkout must never be blocked by missing reference data, so an
// unknown city pays a fixed penalty charge instead of failing.
var DefaultCharge = decimal.NewFromInt(99)

// CitySettings is the admin-managed delivery configuration for one city.
// A nil or non-positive FreeDeliveryThreshold disables the waiver.
type CitySettings struct {
	Name                  string
	BaseCharge            decimal.Decimal
	FreeDeliveryThreshold *decimal.Decimal
	State                 string
}

// Repository provides lookup and admin mutation of city settings.
type Repository interface {
	Get(ctx context.Context, city string) (*CitySettings, error)
	List(ctx context.Context) ([]CitySettings, error)
	Upsert(ctx context.Context, s *CitySettings) error
	Delete(ctx context.Context, city string) error
}

// Calculator decides the delivery fee for a subtotal and destination city.
type Calculator struct {
	settings      Repository
	defaultCharge decimal.Decimal
}

// NewCalculator creates a Calculator backed by the given settings store.
func NewCalculator(settings Repository) *Calculator {
	return &Calculator{settings: settings, defaultCharge: DefaultCharge}
}

// Charge returns the delivery fee for an order with the given subtotal going
// to city. Unknown cities fall back to the fixed default charge; only
// infrastructure failures propagate as errors.
func (c *Calculator) Charge(ctx context.Context, city string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	s, err := c.settings.Get(ctx, city)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.defaultCharge, nil
		}
		return decimal.Zero, errors.Wrapf(err, "get settings for city %q", city)
	}

	if s.FreeDeliveryThreshold != nil && s.FreeDeliveryThreshold.IsPositive() &&
		subtotal.GreaterThanOrEqual(*s.FreeDeliveryThreshold) {
		return decimal.Zero, nil
	}

	if s.BaseCharge.IsNegative() {
		return decimal.Zero, nil
	}
	return s.BaseCharge, nil
}

// DefaultCities is the built-in reference data served when the settings
// store is empty, matching the storefront's launch coverage.
func DefaultCities() []CitySettings {
	threshold := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return []CitySettings{
		{Name: "Guntur", BaseCharge: decimal.NewFromInt(49), FreeDeliveryThreshold: threshold(500), State: "Andhra Pradesh"},
		{Name: "Vijayawada", BaseCharge: decimal.NewFromInt(49), FreeDeliveryThreshold: threshold(500), State: "Andhra Pradesh"},
		{Name: "Visakhapatnam", BaseCharge: decimal.NewFromInt(69), FreeDeliveryThreshold: threshold(750), State: "Andhra Pradesh"},
		{Name: "Tirupati", BaseCharge: decimal.NewFromInt(69), State: "Andhra Pradesh"},
		{Name: "Nellore", BaseCharge: decimal.NewFromInt(79), State: "Andhra Pradesh"},
		{Name: "Hyderabad", BaseCharge: decimal.NewFromInt(59), FreeDeliveryThreshold: threshold(600), State: "Telangana"},
		{Name: "Warangal", BaseCharge: decimal.NewFromInt(79), State: "Telangana"},
	}
}

// DefaultStates lists the states shown to shoppers when the states table is
// empty. Disabled states are visible but not selectable at checkout.
func DefaultStates() []State {
	return []State{
		{Name: "Andhra Pradesh", Enabled: true},
		{Name: "Telangana", Enabled: true},
		{Name: "Karnataka", Enabled: false},
		{Name: "Tamil Nadu", Enabled: false},
		{Name: "Maharashtra", Enabled: false},
	}
}

// State is a selectable shipping state with an enable flag.
type State struct {
	Name    string
	Enabled bool
}

// StateRepository lists shipping states.
type StateRepository interface {
	ListStates(ctx context.Context) ([]State, error)
}
