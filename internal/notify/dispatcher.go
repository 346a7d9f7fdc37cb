package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/alfoods/storefront/internal/domain/order"
)

const (
	sendAttempts = 3
	retryBackoff = 2 * time.Second
	sendTimeout  = 30 * time.Second
)

var _ order.Notifier = (*Dispatcher)(nil)

// Dispatcher delivers confirmations on a detached goroutine with bounded
// retries. The checkout request's cancellation does not cancel an in-flight
// delivery.
type Dispatcher struct {
	sender  Sender
	backoff time.Duration

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher around sender.
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender, backoff: retryBackoff}
}

// OrderConfirmed schedules delivery of a confirmation and returns immediately.
func (d *Dispatcher) OrderConfirmed(ctx context.Context, o *order.Order) {
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(detached, o)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, o *order.Order) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	lg := zctx.From(ctx).With(zap.String("order_code", o.OrderCode))
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		err := d.sender.Send(ctx, o)
		if err == nil {
			lg.Info("Order confirmation sent", zap.Int("attempt", attempt))
			return
		}
		lg.Warn("Order confirmation delivery failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == sendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff):
		}
	}
	lg.Error("Order confirmation dropped after retries")
}

// Wait blocks until every scheduled delivery has finished. Used on shutdown
// and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
