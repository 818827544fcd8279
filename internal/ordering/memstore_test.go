package ordering

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"testing"

	"bakery-service/internal/model"
	"bakery-service/pkg/config"
	"bakery-service/prometheus"
)

func TestMain(m *testing.M) {
	cfg, _ := config.Load("ordering-test")
	prometheus.InitMetrics(cfg)
	os.Exit(m.Run())
}

// memState is the shared state behind the in-memory Store used by these
// tests. Mutations go through memStore (locking) or memTx (inside an open
// transaction, already under the lock).
type memState struct {
	products      map[uint]model.Product
	orders        map[uint]model.Order
	refs          map[string]uint // payment ref -> order id
	nextProductID uint
	nextOrderID   uint
	nextItemID    uint
	seq           int // creation-order counter for deterministic tie-breaks
	createdSeq    map[uint]int
}

func newMemState() *memState {
	return &memState{
		products:   make(map[uint]model.Product),
		orders:     make(map[uint]model.Order),
		refs:       make(map[string]uint),
		createdSeq: make(map[uint]int),
	}
}

func (st *memState) addProduct(bakeryID uint, name string, price float64, qty int, archived bool) model.Product {
	st.nextProductID++
	st.seq++
	p := model.Product{
		ID:       st.nextProductID,
		BakeryID: bakeryID,
		Name:     name,
		Price:    price,
		Quantity: qty,
		Archived: archived,
	}
	st.products[p.ID] = p
	st.createdSeq[p.ID] = st.seq
	return p
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		o := v
		o.Items = append([]model.OrderItem(nil), v.Items...)
		c.orders[k] = o
	}
	for k, v := range st.refs {
		c.refs[k] = v
	}
	for k, v := range st.createdSeq {
		c.createdSeq[k] = v
	}
	c.nextProductID = st.nextProductID
	c.nextOrderID = st.nextOrderID
	c.nextItemID = st.nextItemID
	c.seq = st.seq
	return c
}

func (st *memState) productForBakery(bakeryID, productID uint) (*model.Product, error) {
	p, ok := st.products[productID]
	if !ok || p.BakeryID != bakeryID || p.Archived {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
	}
	cp := p
	return &cp, nil
}

func (st *memState) productByID(productID uint) (*model.Product, error) {
	p, ok := st.products[productID]
	if !ok || p.Archived {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
	}
	cp := p
	return &cp, nil
}

func (st *memState) firstProductByName(bakeryID uint, name string) (*model.Product, error) {
	var candidates []model.Product
	for _, p := range st.products {
		if p.BakeryID == bakeryID && p.Name == name && !p.Archived {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Resource: "product", Ref: name}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return st.createdSeq[candidates[i].ID] < st.createdSeq[candidates[j].ID]
	})
	cp := candidates[0]
	return &cp, nil
}

func (st *memState) firstProductByNamePrice(bakeryID uint, name string, price float64) (*model.Product, error) {
	var candidates []model.Product
	for _, p := range st.products {
		if p.BakeryID == bakeryID && p.Name == name && p.Price == price && !p.Archived {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Resource: "product", Ref: name}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return st.createdSeq[candidates[i].ID] < st.createdSeq[candidates[j].ID]
	})
	cp := candidates[0]
	return &cp, nil
}

func (st *memState) productOwnedBy(bakeryID, productID uint) (*model.Product, error) {
	p, ok := st.products[productID]
	if !ok || p.BakeryID != bakeryID {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
	}
	cp := p
	return &cp, nil
}

func (st *memState) archivedProducts(bakeryID uint) ([]model.Product, error) {
	var out []model.Product
	for _, p := range st.products {
		if p.BakeryID == bakeryID && p.Archived {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return st.createdSeq[out[i].ID] < st.createdSeq[out[j].ID]
	})
	return out, nil
}

func (st *memState) productReferenced(productID uint) (bool, error) {
	for _, o := range st.orders {
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (st *memState) deleteProducts(ids []uint) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := st.products[id]; ok {
			delete(st.products, id)
			deleted++
		}
	}
	return deleted, nil
}

func (st *memState) adjustStock(productID uint, delta int) (*model.Product, error) {
	p, ok := st.products[productID]
	if !ok {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(uint64(productID), 10)}
	}
	p.Quantity += delta
	st.products[productID] = p
	cp := p
	return &cp, nil
}

func (st *memState) decrementStock(productID uint, qty int) (bool, error) {
	p, ok := st.products[productID]
	if !ok || p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	st.products[productID] = p
	return true, nil
}

func (st *memState) createOrder(order *model.Order) error {
	if order.PaymentRef != nil {
		if _, dup := st.refs[*order.PaymentRef]; dup {
			return fmt.Errorf("payment reference already committed: %w", ErrConflict)
		}
	}
	st.nextOrderID++
	order.ID = st.nextOrderID
	for i := range order.Items {
		st.nextItemID++
		order.Items[i].ID = st.nextItemID
		order.Items[i].OrderID = order.ID
	}
	st.orders[order.ID] = *order
	if order.PaymentRef != nil {
		st.refs[*order.PaymentRef] = order.ID
	}
	return nil
}

func (st *memState) orderByPaymentRef(ref string) (*model.Order, error) {
	id, ok := st.refs[ref]
	if !ok {
		return nil, &NotFoundError{Resource: "order", Ref: ref}
	}
	return st.orderWithItems(id)
}

func (st *memState) orderWithItems(orderID uint) (*model.Order, error) {
	o, ok := st.orders[orderID]
	if !ok {
		return nil, &NotFoundError{Resource: "order", Ref: strconv.FormatUint(uint64(orderID), 10)}
	}
	cp := o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	for i := range cp.Items {
		if p, ok := st.products[cp.Items[i].ProductID]; ok {
			cp.Items[i].Product = p
		}
	}
	return &cp, nil
}

// memStore is the locking entry point handed to the code under test.
type memStore struct {
	mu sync.Mutex
	st *memState
}

func newMemStore() *memStore {
	return &memStore{st: newMemState()}
}

func (s *memStore) addProduct(bakeryID uint, name string, price float64, qty int) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.addProduct(bakeryID, name, price, qty, false)
}

func (s *memStore) addArchivedProduct(bakeryID uint, name string, price float64, qty int) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.addProduct(bakeryID, name, price, qty, true)
}

func (s *memStore) productQuantity(t *testing.T, productID uint) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		t.Fatalf("product %d not found", productID)
	}
	return p.Quantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// WithinTx serializes transactions the way row locks do in the real store,
// and restores the pre-transaction state on error.
func (s *memStore) WithinTx(_ context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&memTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *memStore) ProductForBakery(_ context.Context, bakeryID, productID uint) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.productForBakery(bakeryID, productID)
}

func (s *memStore) ProductByID(_ context.Context, productID uint) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.productByID(productID)
}

func (s *memStore) FirstProductByName(_ context.Context, bakeryID uint, name string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.firstProductByName(bakeryID, name)
}

func (s *memStore) FirstProductByNamePrice(_ context.Context, bakeryID uint, name string, price float64) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.firstProductByNamePrice(bakeryID, name, price)
}

func (s *memStore) ProductOwnedBy(_ context.Context, bakeryID, productID uint) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.productOwnedBy(bakeryID, productID)
}

func (s *memStore) ArchivedProducts(_ context.Context, bakeryID uint) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.archivedProducts(bakeryID)
}

func (s *memStore) ProductReferenced(_ context.Context, productID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.productReferenced(productID)
}

func (s *memStore) DeleteProducts(_ context.Context, ids []uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteProducts(ids)
}

func (s *memStore) AdjustStock(_ context.Context, productID uint, delta int) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.adjustStock(productID, delta)
}

func (s *memStore) DecrementStock(_ context.Context, productID uint, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.decrementStock(productID, qty)
}

func (s *memStore) CreateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createOrder(order)
}

func (s *memStore) OrderByPaymentRef(_ context.Context, ref string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orderByPaymentRef(ref)
}

func (s *memStore) OrderWithItems(_ context.Context, orderID uint) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orderWithItems(orderID)
}

// memTx is the unlocked view valid only inside WithinTx.
type memTx struct {
	st *memState
}

func (t *memTx) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTx) ProductForBakery(_ context.Context, bakeryID, productID uint) (*model.Product, error) {
	return t.st.productForBakery(bakeryID, productID)
}

func (t *memTx) ProductByID(_ context.Context, productID uint) (*model.Product, error) {
	return t.st.productByID(productID)
}

func (t *memTx) FirstProductByName(_ context.Context, bakeryID uint, name string) (*model.Product, error) {
	return t.st.firstProductByName(bakeryID, name)
}

func (t *memTx) FirstProductByNamePrice(_ context.Context, bakeryID uint, name string, price float64) (*model.Product, error) {
	return t.st.firstProductByNamePrice(bakeryID, name, price)
}

func (t *memTx) ProductOwnedBy(_ context.Context, bakeryID, productID uint) (*model.Product, error) {
	return t.st.productOwnedBy(bakeryID, productID)
}

func (t *memTx) ArchivedProducts(_ context.Context, bakeryID uint) ([]model.Product, error) {
	return t.st.archivedProducts(bakeryID)
}

func (t *memTx) ProductReferenced(_ context.Context, productID uint) (bool, error) {
	return t.st.productReferenced(productID)
}

func (t *memTx) DeleteProducts(_ context.Context, ids []uint) (int64, error) {
	return t.st.deleteProducts(ids)
}

func (t *memTx) AdjustStock(_ context.Context, productID uint, delta int) (*model.Product, error) {
	return t.st.adjustStock(productID, delta)
}

func (t *memTx) DecrementStock(_ context.Context, productID uint, qty int) (bool, error) {
	return t.st.decrementStock(productID, qty)
}

func (t *memTx) CreateOrder(_ context.Context, order *model.Order) error {
	return t.st.createOrder(order)
}

func (t *memTx) OrderByPaymentRef(_ context.Context, ref string) (*model.Order, error) {
	return t.st.orderByPaymentRef(ref)
}

func (t *memTx) OrderWithItems(_ context.Context, orderID uint) (*model.Order, error) {
	return t.st.orderWithItems(orderID)
}
