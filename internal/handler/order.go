package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/order"
)

// orderRequest is the checkout request body. Address arrives either as a
// single freeform string or as structured fields; the domain enforces that
// exactly one shape is present.
type orderRequest struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`

	Address  string `json:"address"`
	DoorNo   string `json:"door_no"`
	Building string `json:"building"`
	Street   string `json:"street"`
	Pincode  string `json:"pincode"`

	City          string           `json:"city"`
	State         string           `json:"state"`
	Items         []order.LineItem `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	PaymentMethod string           `json:"payment_method"`
}

func (req *orderRequest) address() order.Address {
	if req.DoorNo != "" || req.Building != "" || req.Street != "" || req.Pincode != "" {
		return order.Address{Structured: &order.StructuredAddress{
			DoorNo:   req.DoorNo,
			Building: req.Building,
			Street:   req.Street,
			City:     req.City,
			State:    req.State,
			Pincode:  req.Pincode,
		}}
	}
	return order.Address{Freeform: req.Address}
}

// orderView is the JSON shape of an order in responses.
type orderView struct {
	ID           string `json:"id"`
	OrderCode    string `json:"order_code"`
	TrackingCode string `json:"tracking_code"`

	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`

	Items          []order.LineItem `json:"items"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	DeliveryCharge decimal.Decimal  `json:"delivery_charge"`
	Total          decimal.Decimal  `json:"total"`

	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`

	Cancelled         bool       `json:"cancelled,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	AdminNotes        string     `json:"admin_notes,omitempty"`
	DeliveryDays      *int32     `json:"delivery_days,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

func toOrderView(o *order.Order) orderView {
	v := orderView{
		ID:             o.ID,
		OrderCode:      o.OrderCode,
		TrackingCode:   o.TrackingCode,
		CustomerID:     o.CustomerID,
		CustomerName:   o.CustomerName,
		Email:          o.Email,
		Phone:          o.Phone,
		Address:        o.Address.String(),
		City:           o.City,
		State:          o.State,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		DeliveryCharge: o.DeliveryCharge,
		Total:          o.Total,
		PaymentMethod:  o.PaymentMethod,
		PaymentStatus:  o.PaymentStatus,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		Cancelled:      o.Cancelled,
		CancelReason:   o.CancelReason,
		AdminNotes:     o.AdminNotes,
		DeliveryDays:   o.DeliveryDays,
	}
	if o.DeliveryDays != nil {
		eta := o.CreatedAt.AddDate(0, 0, int(*o.DeliveryDays))
		v.EstimatedDelivery = &eta
	}
	return v
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orderService.Checkout(r.Context(), order.CheckoutRequest{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.address(),
		City:          req.City,
		State:         req.State,
		Items:         req.Items,
		Subtotal:      req.Subtotal,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toOrderView(o))
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.Track(r.Context(), r.PathValue("identifier"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderView(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderViews(orders))
}

func (h *Handler) listOrdersByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByCustomer(r.Context(), r.PathValue("userID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderViews(orders))
}

func toOrderViews(orders []order.Order) []orderView {
	views := make([]orderView, len(orders))
	for i := range orders {
		views[i] = toOrderView(&orders[i])
	}
	return views
}

func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.orderService.AnalyticsSummary(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"total_orders":     sum.TotalOrders,
		"total_sales":      sum.TotalSales,
		"active_orders":    sum.ActiveOrders,
		"cancelled_orders": sum.CancelledOrders,
		"completed_orders": sum.CompletedOrders,
		"monthly_sales":    sum.MonthlySales,
		"monthly_orders":   sum.MonthlyOrders,
		"top_products":     sum.TopProducts,
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	code := r.PathValue("orderCode")
	if err := h.orderService.UpdateStatus(r.Context(), code, order.Status(req.Status)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"order_code": code, "status": req.Status})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	code := r.PathValue("orderCode")
	if err := h.orderService.Cancel(r.Context(), code, req.Reason); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"order_code": code, "status": string(order.StatusCancelled)})
}

func (h *Handler) adminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes        *string `json:"admin_notes"`
		DeliveryDays *int32  `json:"delivery_days"`
		Status       *string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	update := order.AdminFieldUpdate{
		Notes:        req.Notes,
		DeliveryDays: req.DeliveryDays,
	}
	if req.Status != nil {
		s := order.Status(*req.Status)
		update.Status = &s
	}

	code := r.PathValue("orderCode")
	if err := h.orderService.SetAdminFields(r.Context(), code, update); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"order_code": code})
}
