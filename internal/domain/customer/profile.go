// Package customer holds the checkout pre-fill profile cache contract.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no profile exists for an identifier.
var ErrNotFound = errors.New("customer profile not found")

// Profile is the last-used contact and shipping snapshot for one identifier
// (a phone number or an email address). Every successful checkout upserts
// two rows, one per identifier, last write wins.
type Profile struct {
	Identifier   string
	CustomerName string
	Email        string
	Phone        string
	DoorNo       string
	Building     string
	Street       string
	City         string
	State        string
	Pincode      string
	UpdatedAt    time.Time
}

// Repository provides profile upsert and lookup.
type Repository interface {
	Upsert(ctx context.Context, p *Profile) error
	Get(ctx context.Context, identifier string) (*Profile, error)
}
