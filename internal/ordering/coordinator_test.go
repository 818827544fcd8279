package ordering

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery-service/internal/model"
)

func draft(method string) *OrderDraft {
	return &OrderDraft{
		CustomerName:  "Amélie",
		CustomerEmail: "amelie@example.com",
		BakeryName:    "Boulangerie Centrale",
		Pin:           "4321",
		PaymentMethod: method,
	}
}

func TestCommitDecrementsAndMaterializesOrder(t *testing.T) {
	store := newMemStore()
	croissant := store.addProduct(1, "Croissant", 1.20, 5)
	allocator := NewAllocator(store)
	coordinator := NewCoordinator(store)

	plan, err := allocator.Plan(context.Background(), 1, []CartLine{
		{ProductID: croissant.ID, Quantity: 3},
	})
	require.NoError(t, err)

	order, err := coordinator.Commit(context.Background(), plan, draft(model.PaymentMethodOnSite))
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "4321", order.Pin)
	require.Len(t, order.Items, 1)
	assert.Equal(t, croissant.ID, order.Items[0].ProductID)
	assert.Equal(t, "Croissant", order.Items[0].Product.Name)
	assert.Equal(t, 2, store.productQuantity(t, croissant.ID))
}

func TestCommitIsAtomicAcrossLines(t *testing.T) {
	store := newMemStore()
	croissant := store.addProduct(1, "Croissant", 1.20, 10)
	baguette := store.addProduct(1, "Baguette", 1.10, 10)
	pain := store.addProduct(1, "Pain de campagne", 3.40, 10)
	allocator := NewAllocator(store)
	coordinator := NewCoordinator(store)

	plan, err := allocator.Plan(context.Background(), 1, []CartLine{
		{ProductID: croissant.ID, Quantity: 2},
		{ProductID: baguette.ID, Quantity: 4},
		{ProductID: pain.ID, Quantity: 1},
	})
	require.NoError(t, err)

	// A concurrent order drains the second line between planning and commit.
	ok, err := store.DecrementStock(context.Background(), baguette.ID, 8)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = coordinator.Commit(context.Background(), plan, draft(model.PaymentMethodOnSite))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Baguette", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Available)

	// Nothing was decremented and no order exists.
	assert.Equal(t, 10, store.productQuantity(t, croissant.ID))
	assert.Equal(t, 2, store.productQuantity(t, baguette.ID))
	assert.Equal(t, 10, store.productQuantity(t, pain.ID))
	assert.Equal(t, 0, store.orderCount())
}

func TestCommitRejectsEmptyPlan(t *testing.T) {
	store := newMemStore()
	coordinator := NewCoordinator(store)

	_, err := coordinator.Commit(context.Background(), &Plan{BakeryID: 1}, draft(model.PaymentMethodOnSite))
	assert.ErrorIs(t, err, ErrEmptyAllocation)
}

// Spawning more concurrent commits than the stock can satisfy: the sum of
// committed quantities must never exceed the starting quantity, and every
// loser must fail with an insufficient-stock error.
func TestConcurrentCommitsNeverOversell(t *testing.T) {
	store := newMemStore()
	croissant := store.addProduct(1, "Croissant", 1.20, 7)
	allocator := NewAllocator(store)
	coordinator := NewCoordinator(store)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plan, err := allocator.Plan(context.Background(), 1, []CartLine{
				{ProductID: croissant.ID, Quantity: 1},
			})
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = coordinator.Commit(context.Background(), plan, draft(model.PaymentMethodOnSite))
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		var stockErr *InsufficientStockError
		assert.ErrorAs(t, err, &stockErr)
	}

	assert.Equal(t, 7, committed, "exactly the available stock must be sold")
	assert.Equal(t, 0, store.productQuantity(t, croissant.ID))
	assert.Equal(t, 7, store.orderCount())
}

func TestCommittedOrderMarksProductsReferenced(t *testing.T) {
	store := newMemStore()
	croissant := store.addProduct(1, "Croissant", 1.20, 5)
	baguette := store.addProduct(1, "Baguette", 1.10, 5)
	allocator := NewAllocator(store)
	coordinator := NewCoordinator(store)

	plan, err := allocator.Plan(context.Background(), 1, []CartLine{
		{ProductID: croissant.ID, Quantity: 1},
	})
	require.NoError(t, err)
	_, err = coordinator.Commit(context.Background(), plan, draft(model.PaymentMethodOnSite))
	require.NoError(t, err)

	referenced, err := store.ProductReferenced(context.Background(), croissant.ID)
	require.NoError(t, err)
	assert.True(t, referenced, "ordered product must be protected from hard deletion")

	referenced, err = store.ProductReferenced(context.Background(), baguette.ID)
	require.NoError(t, err)
	assert.False(t, referenced)
}

// The croissant scenario: 5 in stock, orders of 3, 3, 2.
func TestSequentialOrdersAgainstSharedStock(t *testing.T) {
	store := newMemStore()
	croissant := store.addProduct(1, "Croissant", 1.20, 5)
	allocator := NewAllocator(store)
	coordinator := NewCoordinator(store)

	commit := func(qty int) error {
		plan, err := allocator.Plan(context.Background(), 1, []CartLine{
			{ProductID: croissant.ID, Quantity: qty},
		})
		if err != nil {
			return err
		}
		_, err = coordinator.Commit(context.Background(), plan, draft(model.PaymentMethodOnSite))
		return err
	}

	require.NoError(t, commit(3))
	assert.Equal(t, 2, store.productQuantity(t, croissant.ID))

	err := commit(3)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, store.productQuantity(t, croissant.ID))

	require.NoError(t, commit(2))
	assert.Equal(t, 0, store.productQuantity(t, croissant.ID))
}
