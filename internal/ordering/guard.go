package ordering

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"bakery-service/internal/model"
	"bakery-service/internal/payment"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// Guard makes payment confirmation idempotent: a given payment reference
// produces at most one order, however many times the confirmation callback
// is retried. The application-level existence check is only the fast path;
// the unique constraint on Order.PaymentRef is the actual source of truth.
type Guard struct {
	store       Store
	payments    payment.Provider
	allocator   *Allocator
	coordinator *Coordinator
}

// NewGuard creates a Guard.
func NewGuard(store Store, payments payment.Provider, allocator *Allocator, coordinator *Coordinator) *Guard {
	return &Guard{
		store:       store,
		payments:    payments,
		allocator:   allocator,
		coordinator: coordinator,
	}
}

// ConfirmAndCommit commits the order attached to a payment reference exactly
// once. The returned bool reports whether this call was a replay of an
// already-committed confirmation.
//
// The cart is re-derived from the session metadata recorded at payment-intent
// creation, never from client input.
func (g *Guard) ConfirmAndCommit(ctx context.Context, paymentRef string) (*model.Order, bool, error) {
	log := logger.FromContext(ctx)

	if paymentRef == "" {
		return nil, false, NewValidationError("payment reference is required")
	}

	// Fast path: this reference already produced an order.
	if existing, err := g.store.OrderByPaymentRef(ctx, paymentRef); err == nil {
		prometheus.IdempotentReplays.Inc()
		log.Info("Payment confirmation replayed",
			zap.String("payment_ref", paymentRef),
			zap.Uint("order_id", existing.ID))
		return existing, true, nil
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, false, err
		}
	}

	session, err := g.payments.RetrieveSession(ctx, paymentRef)
	if err != nil {
		return nil, false, &ExternalServiceError{Service: "payment authority", Err: err}
	}

	meta := session.Metadata
	if meta.Cart == "" || meta.CustomerEmail == "" || meta.CustomerName == "" {
		return nil, false, NewValidationError("payment session %s is missing order metadata", paymentRef)
	}

	var lines []CartLine
	if err := json.Unmarshal([]byte(meta.Cart), &lines); err != nil {
		return nil, false, NewValidationError("payment session %s carries a malformed cart snapshot", paymentRef)
	}

	plan, err := g.allocator.PlanLenient(ctx, meta.BakeryID, lines)
	if err != nil {
		return nil, false, err
	}

	ref := paymentRef
	draft := &OrderDraft{
		CustomerName:  meta.CustomerName,
		CustomerEmail: meta.CustomerEmail,
		CustomerPhone: meta.CustomerPhone,
		BakeryName:    meta.BakeryName,
		Pin:           meta.Pin,
		PickupTime:    meta.PickupTime,
		PaymentMethod: model.PaymentMethodOnline,
		IsPaid:        true, // paid by construction: the authority already charged
		PaymentRef:    &ref,
	}

	order, err := g.coordinator.Commit(ctx, plan, draft)
	if err != nil {
		// A concurrent confirmation won the insert race; the unique
		// constraint on the payment reference is the backstop. Re-read and
		// report a replay.
		if errors.Is(err, ErrConflict) {
			existing, rerr := g.store.OrderByPaymentRef(ctx, paymentRef)
			if rerr != nil {
				return nil, false, rerr
			}
			prometheus.IdempotentReplays.Inc()
			log.Info("Payment confirmation lost insert race, returning existing order",
				zap.String("payment_ref", paymentRef),
				zap.Uint("order_id", existing.ID))
			return existing, true, nil
		}
		return nil, false, err
	}

	return order, false, nil
}
