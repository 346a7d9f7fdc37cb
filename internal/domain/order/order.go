// Package order implements the order ledger and the checkout flow: cart
// validation, server-side charge computation, atomic persistence with stock
// decrements, and the order status machine.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for checkout and ledger operations.
var (
	ErrEmptyItems  = errors.New("items required")
	ErrNotFound    = errors.New("order not found")
	ErrEmptyUpdate = errors.New("no fields to update")
	// ErrCodeConflict is reported by the store when a generated order or
	// tracking code collides with an existing row. The service regenerates
	// and retries.
	ErrCodeConflict = errors.New("order code conflict")
)

// ProductMissingError indicates a line item references a product that no
// longer exists in the catalog.
type ProductMissingError struct {
	Name string
}

func (e *ProductMissingError) Error() string {
	return fmt.Sprintf("Product %s is no longer available", e.Name)
}

// OutOfStockError indicates a line item's product is flagged out of stock.
type OutOfStockError struct {
	Name string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Product %s is out of stock", e.Name)
}

// InsufficientStockError indicates the requested quantity exceeds the
// product's remaining stock.
type InsufficientStockError struct {
	Name string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient inventory for %s", e.Name)
}

// CityRestrictedError indicates the product cannot be delivered to the
// order's destination city.
type CityRestrictedError struct {
	Name string
	City string
}

func (e *CityRestrictedError) Error() string {
	return fmt.Sprintf("Product %s is not available in %s", e.Name, e.City)
}

// InvalidQuantityError indicates a line item with a quantity below one.
type InvalidQuantityError struct {
	Name string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for %s", e.Name)
}

// UnknownStatusError indicates a status value outside the state machine.
type UnknownStatusError struct {
	Status Status
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown order status %q", e.Status)
}

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// MissingFieldError indicates a required checkout field was empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// StructuredAddress is the door/building/street form of a shipping address.
type StructuredAddress struct {
	DoorNo   string
	Building string
	Street   string
	City     string
	State    string
	Pincode  string
}

// Address is a tagged variant: exactly one of Freeform or Structured is
// populated for any valid order.
type Address struct {
	Freeform   string
	Structured *StructuredAddress
}

// Validate enforces the one-shape invariant.
func (a Address) Validate() error {
	hasFreeform := a.Freeform != ""
	if hasFreeform && a.Structured != nil {
		return errors.New("address: provide either a freeform address or structured fields, not both")
	}
	if !hasFreeform && a.Structured == nil {
		return &MissingFieldError{Field: "address"}
	}
	if a.Structured != nil && a.Structured.Street == "" {
		return &MissingFieldError{Field: "street"}
	}
	return nil
}

// String renders the address as a single shipping line.
func (a Address) String() string {
	if a.Structured == nil {
		return a.Freeform
	}
	parts := make([]string, 0, 6)
	for _, p := range []string{
		a.Structured.DoorNo, a.Structured.Building, a.Structured.Street,
		a.Structured.City, a.Structured.State, a.Structured.Pincode,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LineItem is one product/weight/quantity entry of an order. Name, price,
// and description are snapshots taken at order time; later catalog edits
// never change a placed order.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Image       string          `json:"image,omitempty"`
	Weight      string          `json:"weight"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description,omitempty"`
}

// Order is a durable ledger record. Subtotal, DeliveryCharge, and Total are
// fixed at creation; Total == Subtotal + DeliveryCharge always holds.
type Order struct {
	ID           string
	OrderCode    string
	TrackingCode string

	CustomerID   string
	CustomerName string
	Email        string
	Phone        string
	Address      Address
	City         string
	State        string

	Items          []LineItem
	Subtotal       decimal.Decimal
	DeliveryCharge decimal.Decimal
	Total          decimal.Decimal

	PaymentMethod string
	PaymentStatus string
	Status        Status
	CreatedAt     time.Time

	Cancelled    bool
	CancelReason string
	AdminNotes   string
	DeliveryDays *int32
}

// StockDecrement is one inventory adjustment applied atomically with the
// order insert. Name is carried for error messages only.
type StockDecrement struct {
	ProductID string
	Name      string
	Quantity  int
}

// AdminFieldUpdate is a partial update of the admin-managed order fields.
// Nil pointers leave the corresponding field untouched.
type AdminFieldUpdate struct {
	Notes        *string
	DeliveryDays *int32
	Status       *Status
}

// Empty reports whether the update would touch nothing.
func (u AdminFieldUpdate) Empty() bool {
	return u.Notes == nil && u.DeliveryDays == nil && u.Status == nil
}

// Repository defines ledger persistence. Create must atomically insert the
// order and apply every stock decrement: a conditional-decrement miss fails
// the whole write with an InsufficientStockError, and a code collision
// surfaces as ErrCodeConflict.
type Repository interface {
	Create(ctx context.Context, o *Order, decrements []StockDecrement) error
	FindByCode(ctx context.Context, orderCode string) (*Order, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderCode string, status Status) error
	Cancel(ctx context.Context, orderCode, reason string) error
	UpdateAdminFields(ctx context.Context, orderCode string, update AdminFieldUpdate) error
}

// Notifier dispatches an order confirmation. Implementations must be
// fire-and-forget: the checkout response never waits on them.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *Order)
}
