package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/alfoods/storefront/internal/domain/catalog"
	"github.com/alfoods/storefront/internal/domain/customer"
	"github.com/alfoods/storefront/internal/domain/delivery"
)

// GuestCustomerID marks orders placed without an authenticated account.
const GuestCustomerID = "guest"

// codeRetries bounds regenerate-on-conflict attempts for order and tracking
// codes before giving up.
const codeRetries = 3

// CheckoutRequest is the validated-input boundary for placing an order.
// Subtotal is the client-locked cart subtotal: line prices shown to the
// shopper are honored as submitted, while the delivery charge and total are
// always recomputed server-side.
type CheckoutRequest struct {
	CustomerID    string
	CustomerName  string
	Email         string
	Phone         string
	Address       Address
	City          string
	State         string
	Items         []LineItem
	Subtotal      decimal.Decimal
	PaymentMethod string
}

// Service coordinates checkout and privileged ledger operations.
type Service struct {
	catalog  catalog.Repository
	charges  *delivery.Calculator
	orders   Repository
	profiles customer.Repository
	notifier Notifier

	now func() time.Time

	ordersPlaced metric.Int64Counter
	orderTotal   metric.Float64Histogram
}

// NewService creates an order Service. A nil meter disables metrics.
func NewService(
	cat catalog.Repository,
	charges *delivery.Calculator,
	orders Repository,
	profiles customer.Repository,
	notifier Notifier,
	meter metric.Meter,
) *Service {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("orders")
	}
	ordersPlaced, _ := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders successfully placed"))
	orderTotal, _ := meter.Float64Histogram("order_total",
		metric.WithDescription("Grand total of placed orders"))

	return &Service{
		catalog:      cat,
		charges:      charges,
		orders:       orders,
		profiles:     profiles,
		notifier:     notifier,
		now:          time.Now,
		ordersPlaced: ordersPlaced,
		orderTotal:   orderTotal,
	}
}

// Checkout validates the cart against the live catalog, computes the
// delivery charge and total, and persists the order atomically with its
// stock decrements. Profile cache writes and the confirmation dispatch are
// best-effort side effects that never fail the order.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	decrements, err := s.validateAvailability(ctx, req.Items, req.City)
	if err != nil {
		return nil, err
	}

	charge, err := s.charges.Charge(ctx, req.City, req.Subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "compute delivery charge")
	}

	now := s.now().UTC()
	o := &Order{
		ID:             uuid.New().String(),
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
		Items:          req.Items,
		Subtotal:       req.Subtotal.Round(2),
		DeliveryCharge: charge.Round(2),
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  "completed",
		Status:         StatusConfirmed,
		CreatedAt:      now,
	}
	o.Total = o.Subtotal.Add(o.DeliveryCharge)

	if err := s.persistWithRetry(ctx, o, decrements); err != nil {
		return nil, err
	}

	s.ordersPlaced.Add(ctx, 1)
	s.orderTotal.Record(ctx, o.Total.InexactFloat64())

	s.cacheProfiles(ctx, o)
	if s.notifier != nil {
		s.notifier.OrderConfirmed(ctx, o)
	}

	return o, nil
}

func validateRequest(req *CheckoutRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if req.CustomerName == "" {
		return &MissingFieldError{Field: "customer name"}
	}
	if req.Email == "" {
		return &MissingFieldError{Field: "email"}
	}
	if req.Phone == "" {
		return &MissingFieldError{Field: "phone"}
	}
	if err := req.Address.Validate(); err != nil {
		return err
	}
	if req.CustomerID == "" {
		req.CustomerID = GuestCustomerID
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "online"
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return &InvalidQuantityError{Name: item.Name}
		}
	}
	return nil
}

// validateAvailability gates every line item against the live catalog before
// any write: missing product, out-of-stock flag, stock count, and the
// per-city allow-list. The first failure aborts the whole order.
func (s *Service) validateAvailability(ctx context.Context, items []LineItem, city string) ([]StockDecrement, error) {
	decrements := make([]StockDecrement, 0, len(items))
	for _, item := range items {
		p, err := s.catalog.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &ProductMissingError{Name: item.Name}
			}
			return nil, errors.Wrapf(err, "get product %s", item.ProductID)
		}
		if p.OutOfStock {
			return nil, &OutOfStockError{Name: item.Name}
		}
		if p.StockCount != nil && int(*p.StockCount) < item.Quantity {
			return nil, &InsufficientStockError{Name: item.Name}
		}
		if !p.AvailableIn(city) {
			return nil, &CityRestrictedError{Name: item.Name, City: city}
		}
		if p.StockCount != nil {
			decrements = append(decrements, StockDecrement{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
			})
		}
	}
	return decrements, nil
}

// persistWithRetry writes the order, regenerating codes on unique-index
// collisions. Concurrent carts can still lose the in-transaction stock
// guard; that surfaces as InsufficientStockError with nothing written.
func (s *Service) persistWithRetry(ctx context.Context, o *Order, decrements []StockDecrement) error {
	var err error
	for attempt := 0; attempt < codeRetries; attempt++ {
		o.OrderCode = NewOrderCode(o.CreatedAt)
		o.TrackingCode = NewTrackingCode()

		err = s.orders.Create(ctx, o, decrements)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCodeConflict) {
			return errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Warn("Order code collision, regenerating",
			zap.String("order_code", o.OrderCode),
			zap.Int("attempt", attempt+1),
		)
	}
	return errors.Wrap(err, "create order")
}

// cacheProfiles upserts the shopper's checkout details twice, keyed by phone
// and by email. Failures are logged and swallowed.
func (s *Service) cacheProfiles(ctx context.Context, o *Order) {
	snapshot := customer.Profile{
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Phone:        o.Phone,
		City:         o.City,
		State:        o.State,
		UpdatedAt:    o.CreatedAt,
	}
	if sa := o.Address.Structured; sa != nil {
		snapshot.DoorNo = sa.DoorNo
		snapshot.Building = sa.Building
		snapshot.Street = sa.Street
		snapshot.Pincode = sa.Pincode
	}

	for _, identifier := range []string{o.Phone, o.Email} {
		p := snapshot
		p.Identifier = identifier
		if err := s.profiles.Upsert(ctx, &p); err != nil {
			zctx.From(ctx).Warn("Profile cache upsert failed",
				zap.String("identifier", identifier),
				zap.Error(err),
			)
		}
	}
}

// Track finds an order by order code, tracking code, phone, or email.
func (s *Service) Track(ctx context.Context, identifier string) (*Order, error) {
	return s.orders.FindByIdentifier(ctx, identifier)
}

// Get returns an order by its order code.
func (s *Service) Get(ctx context.Context, orderCode string) (*Order, error) {
	return s.orders.FindByCode(ctx, orderCode)
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// UpdateStatus moves an order to status after checking the state machine.
func (s *Service) UpdateStatus(ctx context.Context, orderCode string, status Status) error {
	if !status.Valid() {
		return &UnknownStatusError{Status: status}
	}
	o, err := s.orders.FindByCode(ctx, orderCode)
	if err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(status) {
		return &InvalidTransitionError{From: o.Status, To: status}
	}
	if status == StatusCancelled {
		return s.orders.Cancel(ctx, orderCode, "")
	}
	return s.orders.UpdateStatus(ctx, orderCode, status)
}

// Cancel marks an order cancelled and records the reason. Stock is not
// restored on cancellation.
func (s *Service) Cancel(ctx context.Context, orderCode, reason string) error {
	o, err := s.orders.FindByCode(ctx, orderCode)
	if err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}
	return s.orders.Cancel(ctx, orderCode, reason)
}

// SetAdminFields applies a partial admin update (notes, delivery days,
// status). An empty update is rejected; a status change goes through the
// state machine.
func (s *Service) SetAdminFields(ctx context.Context, orderCode string, update AdminFieldUpdate) error {
	if update.Empty() {
		return ErrEmptyUpdate
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return &UnknownStatusError{Status: *update.Status}
		}
		o, err := s.orders.FindByCode(ctx, orderCode)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(*update.Status) {
			return &InvalidTransitionError{From: o.Status, To: *update.Status}
		}
	}
	return s.orders.UpdateAdminFields(ctx, orderCode, update)
}
