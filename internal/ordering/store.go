package ordering

import (
	"context"

	"bakery-service/internal/model"
)

// CartLine is one (product reference, quantity) pair from a submitted cart.
// ProductID may belong to another bakery's copy of a same-named product when
// the cart was built against the cross-bakery catalog; Name is the fallback
// reference.
type CartLine struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// Allocation maps one resolved product to the amount to decrement.
type Allocation struct {
	Product  model.Product
	Quantity int
}

// Plan is the pre-validated outcome of resolving a cart against a bakery's
// catalog. Producing it mutates nothing.
type Plan struct {
	BakeryID    uint
	Allocations []Allocation
}

// OrderDraft carries everything the coordinator needs to write an order
// besides the allocation plan itself.
type OrderDraft struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	BakeryName    string
	Pin           string
	PickupTime    string
	PaymentMethod string
	IsPaid        bool
	PaymentRef    *string
}

// Store is the storage port the ordering core and the catalog-maintenance
// handlers run against. The production implementation wraps gorm; tests use
// an in-memory one.
type Store interface {
	// WithinTx runs fn inside a single atomic scope. The Store handed to fn
	// must be used for every operation of that scope; any error rolls the
	// whole scope back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	// ProductForBakery fetches a product by id scoped to one bakery,
	// excluding archived rows.
	ProductForBakery(ctx context.Context, bakeryID, productID uint) (*model.Product, error)

	// ProductByID fetches a product by id regardless of owner, excluding
	// archived rows. Used to translate a cross-bakery product reference into
	// a name.
	ProductByID(ctx context.Context, productID uint) (*model.Product, error)

	// FirstProductByName fetches the oldest active product with the given
	// name in one bakery (creation-order tie-break for duplicate names).
	FirstProductByName(ctx context.Context, bakeryID uint, name string) (*model.Product, error)

	// FirstProductByNamePrice fetches the oldest active product matching
	// both name and price in one bakery. Product copies merge into it.
	FirstProductByNamePrice(ctx context.Context, bakeryID uint, name string, price float64) (*model.Product, error)

	// ProductOwnedBy fetches a product by id scoped to one bakery, archived
	// rows included. Catalog maintenance must see archived products.
	ProductOwnedBy(ctx context.Context, bakeryID, productID uint) (*model.Product, error)

	// ArchivedProducts lists a bakery's archived products, oldest first.
	ArchivedProducts(ctx context.Context, bakeryID uint) ([]model.Product, error)

	// ProductReferenced reports whether any order line references the
	// product. Referenced products must never be hard-deleted.
	ProductReferenced(ctx context.Context, productID uint) (bool, error)

	// DeleteProducts hard-deletes the given product rows and reports how
	// many existed.
	DeleteProducts(ctx context.Context, ids []uint) (int64, error)

	// AdjustStock atomically adds delta to the product's quantity and
	// returns the refreshed row. Concurrent checkout decrements must not be
	// lost to a read-modify-write.
	AdjustStock(ctx context.Context, productID uint, delta int) (*model.Product, error)

	// DecrementStock atomically subtracts qty from the product's quantity if
	// and only if enough stock remains; reports whether it did.
	DecrementStock(ctx context.Context, productID uint, qty int) (bool, error)

	// CreateOrder inserts the order and its items. A duplicate payment
	// reference must return ErrConflict (wrapped or bare).
	CreateOrder(ctx context.Context, order *model.Order) error

	// OrderByPaymentRef returns the order carrying the reference, or a
	// NotFoundError.
	OrderByPaymentRef(ctx context.Context, ref string) (*model.Order, error)

	// OrderWithItems returns the fully materialized order with items and
	// product snapshots.
	OrderWithItems(ctx context.Context, orderID uint) (*model.Order, error)
}
