package model

import (
	"time"

	"gorm.io/gorm"
)

// Bakery represents an independent seller owning its own catalog and orders.
// This is the tenant of the multi-tenant architecture.
type Bakery struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Address   string         `json:"address" gorm:"type:varchar(255)"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Password  string         `json:"-" gorm:"type:varchar(255)"` // staff login credential
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
