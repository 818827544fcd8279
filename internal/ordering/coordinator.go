package ordering

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bakery-service/internal/model"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// Coordinator commits an allocation plan as a single atomic unit: every
// product of the plan is re-checked and decremented, and the order with its
// lines is inserted, all inside one storage transaction. Any failure rolls
// everything back; no partial decrement or partial order is ever visible.
type Coordinator struct {
	store Store
}

// NewCoordinator creates a Coordinator backed by the given store.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Commit atomically decrements stock per the plan and inserts the order.
// Stock is re-checked by the conditional decrement itself, so a plan that was
// valid at allocation time but has since been consumed by a concurrent order
// aborts with InsufficientStockError. Returns the materialized order with
// items and product snapshots.
func (c *Coordinator) Commit(ctx context.Context, plan *Plan, draft *OrderDraft) (*model.Order, error) {
	log := logger.FromContext(ctx)
	defer prometheus.TrackCommit(draft.PaymentMethod)(time.Now())

	if len(plan.Allocations) == 0 {
		return nil, ErrEmptyAllocation
	}

	var orderID uint
	err := c.store.WithinTx(ctx, func(tx Store) error {
		for _, alloc := range plan.Allocations {
			ok, err := tx.DecrementStock(ctx, alloc.Product.ID, alloc.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// Quantity changed since the plan was built; re-read inside
				// the transaction for an accurate shortage report.
				available := 0
				if current, rerr := tx.ProductByID(ctx, alloc.Product.ID); rerr == nil {
					available = current.Quantity
				}
				prometheus.OversellRejections.Inc()
				return &InsufficientStockError{
					ProductName: alloc.Product.Name,
					Requested:   alloc.Quantity,
					Available:   available,
				}
			}
		}

		order := &model.Order{
			CustomerName:  draft.CustomerName,
			CustomerEmail: draft.CustomerEmail,
			CustomerPhone: draft.CustomerPhone,
			BakeryID:      plan.BakeryID,
			BakeryName:    draft.BakeryName,
			Pin:           draft.Pin,
			PickupTime:    draft.PickupTime,
			PaymentMethod: draft.PaymentMethod,
			IsPaid:        draft.IsPaid,
			Status:        model.OrderStatusPending,
			PaymentRef:    draft.PaymentRef,
		}
		for _, alloc := range plan.Allocations {
			order.Items = append(order.Items, model.OrderItem{
				ProductID: alloc.Product.ID,
				Quantity:  alloc.Quantity,
			})
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := c.store.OrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prometheus.OrdersCommittedCounter.WithLabelValues(draft.PaymentMethod).Inc()
	log.Info("Order committed",
		zap.Uint("order_id", order.ID),
		zap.Uint("bakery_id", plan.BakeryID),
		zap.String("payment_method", draft.PaymentMethod),
		zap.Int("lines", len(order.Items)))

	return order, nil
}
