package ordering

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"bakery-service/internal/model"
)

// gormStore is the production Store backed by PostgreSQL through gorm.
type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle as a Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// WithinTx maps the atomic scope onto a database transaction. Postgres
// read-committed plus the conditional UPDATE in DecrementStock is enough to
// serialize concurrent decrements of the same product row.
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) ProductForBakery(ctx context.Context, bakeryID, productID uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND bakery_id = ? AND archived = ?", productID, bakeryID, false).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) ProductByID(ctx context.Context, productID uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND archived = ?", productID, false).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) FirstProductByName(ctx context.Context, bakeryID uint, name string) (*model.Product, error) {
	var product model.Product
	// Duplicate names per bakery are allowed; the oldest row wins so the
	// choice is deterministic.
	err := s.db.WithContext(ctx).
		Where("bakery_id = ? AND name = ? AND archived = ?", bakeryID, name, false).
		Order("created_at ASC, id ASC").
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", Ref: name}
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) FirstProductByNamePrice(ctx context.Context, bakeryID uint, name string, price float64) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Where("bakery_id = ? AND name = ? AND price = ? AND archived = ?", bakeryID, name, price, false).
		Order("created_at ASC, id ASC").
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", Ref: name}
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) ProductOwnedBy(ctx context.Context, bakeryID, productID uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND bakery_id = ?", productID, bakeryID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) ArchivedProducts(ctx context.Context, bakeryID uint) ([]model.Product, error) {
	var products []model.Product
	err := s.db.WithContext(ctx).
		Where("bakery_id = ? AND archived = ?", bakeryID, true).
		Order("created_at ASC, id ASC").
		Find(&products).Error
	return products, err
}

func (s *gormStore) ProductReferenced(ctx context.Context, productID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.OrderItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) DeleteProducts(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Delete(&model.Product{}, ids)
	return result.RowsAffected, result.Error
}

// AdjustStock restocks through the same quantity arithmetic the checkout
// decrement uses, so a merge cannot overwrite a concurrent sale.
func (s *gormStore) AdjustStock(ctx context.Context, productID uint, delta int) (*model.Product, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
	}

	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock performs the guarded decrement. The quantity check lives in
// the WHERE clause, so two concurrent checkouts racing for the last items
// cannot both succeed: the row lock taken by the UPDATE serializes them and
// the loser matches zero rows.
func (s *gormStore) DecrementStock(ctx context.Context, productID uint, qty int) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", productID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) CreateOrder(ctx context.Context, order *model.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Unique constraint on payment_ref: another confirmation already
			// committed this reference.
			return fmt.Errorf("payment reference already committed: %w", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *gormStore) OrderByPaymentRef(ctx context.Context, ref string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Where("payment_ref = ?", ref).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "order", Ref: ref}
		}
		return nil, err
	}
	return &order, nil
}

func (s *gormStore) OrderWithItems(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "order", Ref: strconv.FormatUint(uint64(orderID), 10)}
		}
		return nil, err
	}
	return &order, nil
}
