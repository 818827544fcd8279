package ordering

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bakery-service/internal/model"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// Notifier sends the post-commit order confirmation to the customer.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *model.Order) error
}

// Dispatch fires the confirmation asynchronously. The order is already
// durable at this point: a failed email is logged and counted, nothing more.
// The goroutine gets its own context so a finished HTTP request cannot
// cancel the send mid-flight.
func Dispatch(n Notifier, order *model.Order) {
	if n == nil || order == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := n.OrderConfirmed(ctx, order); err != nil {
			prometheus.NotificationFailures.Inc()
			logger.GetLogger().Warn("Order confirmation email failed",
				zap.Uint("order_id", order.ID),
				zap.String("customer_email", order.CustomerEmail),
				zap.Error(err))
		}
	}()
}
