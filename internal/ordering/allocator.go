package ordering

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"bakery-service/internal/model"
	"bakery-service/pkg/logger"
)

// Allocator resolves cart lines against one bakery's catalog and validates
// availability without touching storage state.
type Allocator struct {
	store Store
}

// NewAllocator creates an Allocator backed by the given store.
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// Plan resolves every cart line to a product owned by bakeryID and checks the
// requested quantities against current stock. Any line that cannot be
// resolved or satisfied fails the whole plan. The returned plan is a pure
// description; nothing is decremented here.
func (a *Allocator) Plan(ctx context.Context, bakeryID uint, lines []CartLine) (*Plan, error) {
	plan := &Plan{BakeryID: bakeryID}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, NewValidationError("invalid quantity %d for %q", line.Quantity, line.Name)
		}

		product, err := a.resolve(ctx, bakeryID, line)
		if err != nil {
			return nil, err
		}

		if product.Quantity < line.Quantity {
			return nil, &InsufficientStockError{
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Quantity,
			}
		}

		plan.Allocations = append(plan.Allocations, Allocation{
			Product:  *product,
			Quantity: line.Quantity,
		})
	}

	return plan, nil
}

// PlanLenient resolves what it can and drops the rest. Used on the payment
// confirmation path, where the cart snapshot may reference products that were
// archived or deleted since the payment intent was created; refusing the
// whole commit there would strand a paid customer. Returns ErrEmptyAllocation
// when no line resolves at all.
func (a *Allocator) PlanLenient(ctx context.Context, bakeryID uint, lines []CartLine) (*Plan, error) {
	log := logger.FromContext(ctx)
	plan := &Plan{BakeryID: bakeryID}

	for _, line := range lines {
		if line.Quantity <= 0 {
			log.Warn("Dropping cart line with invalid quantity",
				zap.String("name", line.Name),
				zap.Int("quantity", line.Quantity))
			continue
		}

		product, err := a.resolve(ctx, bakeryID, line)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				log.Warn("Dropping unresolvable cart line",
					zap.Uint("product_id", line.ProductID),
					zap.String("name", line.Name))
				continue
			}
			return nil, err
		}

		plan.Allocations = append(plan.Allocations, Allocation{
			Product:  *product,
			Quantity: line.Quantity,
		})
	}

	if len(plan.Allocations) == 0 {
		return nil, ErrEmptyAllocation
	}

	return plan, nil
}

// resolve maps one cart line to the bakery's own product record. Resolution
// order: id within the bakery, then the referenced product's name re-matched
// within the bakery (the id may belong to another bakery's copy of the same
// product when the cart came from the cross-bakery catalog), then the raw
// name from the cart line.
func (a *Allocator) resolve(ctx context.Context, bakeryID uint, line CartLine) (*model.Product, error) {
	if line.ProductID != 0 {
		product, err := a.store.ProductForBakery(ctx, bakeryID, line.ProductID)
		if err == nil {
			return product, nil
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}

		// The id exists but belongs to another bakery: retry by that
		// product's name.
		foreign, ferr := a.store.ProductByID(ctx, line.ProductID)
		if ferr == nil {
			product, err = a.store.FirstProductByName(ctx, bakeryID, foreign.Name)
			if err == nil {
				return product, nil
			}
			if !errors.As(err, &nf) {
				return nil, err
			}
		} else if !errors.As(ferr, &nf) {
			return nil, ferr
		}
	}

	if line.Name != "" {
		product, err := a.store.FirstProductByName(ctx, bakeryID, line.Name)
		if err == nil {
			return product, nil
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	ref := line.Name
	if ref == "" {
		ref = "unnamed product"
	}
	return nil, &NotFoundError{Resource: "product", Ref: ref}
}
