package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alfoods/storefront/internal/domain/order"
)

const orderColumns = `id, order_code, tracking_code, customer_id, customer_name, email, phone,
	address, door_no, building, street, pincode, city, state,
	items, subtotal, delivery_charge, total,
	payment_method, payment_status, order_status, created_at,
	cancelled, cancel_reason, admin_notes, delivery_days`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	// The stock guard and the decrement are one statement: a concurrent
	// checkout that drains stock first makes this affect zero rows.
	decrementStockSQL = `UPDATE products
		SET stock_count = stock_count - $2,
		    out_of_stock = (stock_count - $2 <= 0)
		WHERE id = $1 AND stock_count IS NOT NULL AND stock_count >= $2`

	getOrderByCodeSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1`

	findOrderByIdentifierSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE order_code = $1 OR tracking_code = $1 OR phone = $1 OR email = $1
		ORDER BY created_at DESC
		LIMIT 1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET order_status = $2 WHERE order_code = $1`

	cancelOrderSQL = `UPDATE orders
		SET order_status = 'cancelled', cancelled = TRUE, cancel_reason = $2
		WHERE order_code = $1`

	updateAdminFieldsSQL = `UPDATE orders SET
		admin_notes = COALESCE($2, admin_notes),
		delivery_days = COALESCE($3, delivery_days),
		order_status = COALESCE($4, order_status)
		WHERE order_code = $1`
)

// pgUniqueViolation is the PostgreSQL error code for unique index conflicts.
const pgUniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and applies every stock decrement in a single
// transaction. A decrement that finds too little stock rolls the whole write
// back, and a code collision surfaces as order.ErrCodeConflict.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, decrements []order.StockDecrement) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		doorNo, building, street, pincode *string
		freeform                          string
	)
	if sa := o.Address.Structured; sa != nil {
		doorNo, building, street, pincode = &sa.DoorNo, &sa.Building, &sa.Street, &sa.Pincode
	} else {
		freeform = o.Address.Freeform
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.OrderCode, o.TrackingCode, o.CustomerID, o.CustomerName, o.Email, o.Phone,
		freeform, doorNo, building, street, pincode, o.City, o.State,
		itemsJSON, o.Subtotal, o.DeliveryCharge, o.Total,
		o.PaymentMethod, o.PaymentStatus, string(o.Status), o.CreatedAt,
		o.Cancelled, nilIfEmpty(o.CancelReason), nilIfEmpty(o.AdminNotes), o.DeliveryDays,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return order.ErrCodeConflict
		}
		return errors.Wrapf(err, "inserting order %q", o.OrderCode)
	}

	for _, d := range decrements {
		tag, err := tx.Exec(ctx, decrementStockSQL, d.ProductID, d.Quantity)
		if err != nil {
			return errors.Wrapf(err, "decrementing stock for %q", d.ProductID)
		}
		if tag.RowsAffected() == 0 {
			return &order.InsufficientStockError{Name: d.Name}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "committing order")
	}
	return nil
}

// FindByCode returns the order with the given order code.
func (r *OrderRepository) FindByCode(ctx context.Context, orderCode string) (*order.Order, error) {
	return r.queryOne(ctx, getOrderByCodeSQL, orderCode)
}

// FindByIdentifier resolves an order by order code, tracking code, phone, or
// email, newest first when several match.
func (r *OrderRepository) FindByIdentifier(ctx context.Context, identifier string) (*order.Order, error) {
	return r.queryOne(ctx, findOrderByIdentifierSQL, identifier)
}

func (r *OrderRepository) queryOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "querying order %q", arg)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "querying order %q", arg)
	}
	return &o, nil
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for customer %q", customerID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus writes a new order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderCode string, status order.Status) error {
	return r.updateOne(ctx, updateOrderStatusSQL, orderCode, string(status))
}

// Cancel marks the order cancelled and stores the reason. Stock is not
// restored.
func (r *OrderRepository) Cancel(ctx context.Context, orderCode, reason string) error {
	return r.updateOne(ctx, cancelOrderSQL, orderCode, nilIfEmpty(reason))
}

// UpdateAdminFields applies a partial update of the admin-managed fields.
func (r *OrderRepository) UpdateAdminFields(ctx context.Context, orderCode string, update order.AdminFieldUpdate) error {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	return r.updateOne(ctx, updateAdminFieldsSQL, orderCode,
		update.Notes, update.DeliveryDays, status)
}

func (r *OrderRepository) updateOne(ctx context.Context, sql, orderCode string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{orderCode}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "updating order %q", orderCode)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                 order.Order
		freeform                          string
		doorNo, building, street, pincode *string
		cancelReason, adminNotes          *string
		itemsRaw                          []byte
		status                            string
	)
	err := row.Scan(
		&o.ID, &o.OrderCode, &o.TrackingCode, &o.CustomerID, &o.CustomerName, &o.Email, &o.Phone,
		&freeform, &doorNo, &building, &street, &pincode, &o.City, &o.State,
		&itemsRaw, &o.Subtotal, &o.DeliveryCharge, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &status, &o.CreatedAt,
		&o.Cancelled, &cancelReason, &adminNotes, &o.DeliveryDays,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if street != nil {
		o.Address.Structured = &order.StructuredAddress{
			DoorNo:   deref(doorNo),
			Building: deref(building),
			Street:   *street,
			City:     o.City,
			State:    o.State,
			Pincode:  deref(pincode),
		}
	} else {
		o.Address.Freeform = freeform
	}
	o.CancelReason = deref(cancelReason)
	o.AdminNotes = deref(adminNotes)

	if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
		return o, errors.Wrapf(err, "decoding items for order %q", o.OrderCode)
	}
	return o, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
