package model

import (
	"time"
)

// Fulfillment statuses, forward-only.
const (
	OrderStatusPending  = "pending"
	OrderStatusReady    = "ready"
	OrderStatusPickedUp = "picked_up"
)

// Payment methods.
const (
	PaymentMethodOnline = "online"
	PaymentMethodOnSite = "on-site"
)

// Order is a committed checkout. Created exactly once per successful commit;
// PaymentRef is NULL for on-site orders and carries a unique constraint for
// online ones so retried payment confirmations cannot create duplicates.
type Order struct {
	ID            uint        `json:"id" gorm:"primarykey"`
	CustomerName  string      `json:"customer_name" gorm:"type:varchar(100);not null"`
	CustomerEmail string      `json:"customer_email" gorm:"type:varchar(100);not null"`
	CustomerPhone string      `json:"customer_phone" gorm:"type:varchar(30)"`
	BakeryID      uint        `json:"bakery_id" gorm:"index"`
	BakeryName    string      `json:"bakery_name" gorm:"type:varchar(100)"` // fallback for legacy rows without BakeryID
	Pin           string      `json:"pin" gorm:"type:char(4)"`
	PickupTime    string      `json:"pickup_time" gorm:"type:varchar(50)"`
	PaymentMethod string      `json:"payment_method" gorm:"type:varchar(10);not null"`
	IsPaid        bool        `json:"is_paid" gorm:"default:false"`
	Status        string      `json:"status" gorm:"type:varchar(20);default:'pending'"`
	Validated     bool        `json:"validated" gorm:"default:false"`
	PaymentRef    *string     `json:"payment_ref,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OrderItem snapshots one cart line against the concrete bakery product it
// was allocated to. Immutable once written; its existence blocks hard
// deletion of the referenced product.
type OrderItem struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	OrderID   uint    `json:"order_id" gorm:"index;not null"`
	ProductID uint    `json:"product_id" gorm:"index;not null"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	Product   Product `json:"product" gorm:"foreignKey:ProductID"`
}
