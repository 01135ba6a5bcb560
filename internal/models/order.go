package models

import (
	"time"

	"gorm.io/gorm"
)

type Order struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Number     string         `gorm:"size:32;uniqueIndex;not null" json:"number"`
	UserID     uint           `gorm:"not null;index:idx_orders_user_status" json:"user_id"`
	Status     string         `gorm:"size:20;not null;default:'pending';index:idx_orders_user_status" json:"status"` // pending | confirmed | cancelled
	TotalMinor int64          `gorm:"not null;default:0" json:"total_minor"`
	Notes      string         `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	User  User        `gorm:"foreignKey:UserID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is an immutable price snapshot taken when the order is placed.
type OrderItem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	SlipperID      uint      `gorm:"not null;index" json:"slipper_id"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	UnitPriceMinor int64     `gorm:"not null" json:"unit_price_minor"`
	CreatedAt      time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPriceMinor * int64(i.Quantity)
}
