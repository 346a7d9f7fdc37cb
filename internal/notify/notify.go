// Package notify dispatches order confirmations. Delivery is fire-and-forget:
// checkout hands the order to a Dispatcher and returns immediately, and any
// delivery failure is logged, never surfaced to the shopper.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alfoods/storefront/internal/domain/order"
)

// Sender delivers a single confirmation message.
type Sender interface {
	Send(ctx context.Context, o *order.Order) error
}

// confirmationPayload is the JSON body posted to the confirmation webhook.
type confirmationPayload struct {
	OrderCode    string           `json:"order_code"`
	TrackingCode string           `json:"tracking_code"`
	CustomerName string           `json:"customer_name"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	City         string           `json:"city"`
	Items        []order.LineItem `json:"items"`
	Subtotal     decimal.Decimal  `json:"subtotal"`
	Delivery     decimal.Decimal  `json:"delivery_charge"`
	Total        decimal.Decimal  `json:"total"`
	PlacedAt     time.Time        `json:"placed_at"`
}

// WebhookSender posts order confirmations to an HTTP endpoint, typically a
// transactional mail bridge.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a WebhookSender. A nil client uses a default with
// a 10 second timeout.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{url: url, client: client}
}

// Send posts the confirmation payload. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, o *order.Order) error {
	body, err := json.Marshal(confirmationPayload{
		OrderCode:    o.OrderCode,
		TrackingCode: o.TrackingCode,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Phone:        o.Phone,
		Address:      o.Address.String(),
		City:         o.City,
		Items:        o.Items,
		Subtotal:     o.Subtotal,
		Delivery:     o.DeliveryCharge,
		Total:        o.Total,
		PlacedAt:     o.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal confirmation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build confirmation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post confirmation")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("confirmation webhook returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes confirmations to the log. It backs deployments without a
// webhook endpoint configured.
type LogSender struct{}

// Send logs the confirmation and always succeeds.
func (LogSender) Send(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Order confirmation",
		zap.String("order_code", o.OrderCode),
		zap.String("email", o.Email),
		zap.String("total", o.Total.String()),
	)
	return nil
}
