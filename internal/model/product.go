package model

import (
	"time"
)

// Product represents a baked good in one bakery's catalog. The same name may
// exist in several bakeries (and, via product copies, more than once per
// bakery); each row carries its own stock.
type Product struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	BakeryID    uint      `json:"bakery_id" gorm:"index;not null;comment:'Bakery this product belongs to'"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Price       float64   `json:"price" gorm:"not null"`
	Quantity    int       `json:"quantity" gorm:"default:0"`
	Archived    bool      `json:"archived" gorm:"default:false;index"`
	Image       string    `json:"image" gorm:"type:varchar(512)"`
	Categories  []string  `json:"categories" gorm:"serializer:json;type:jsonb"`
	Types       []string  `json:"types" gorm:"serializer:json;type:jsonb"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// No gorm soft delete on Product: archiving is the soft path, and hard
// deletion must be refused while any order item references the row.
