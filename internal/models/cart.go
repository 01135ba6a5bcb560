package models

import "time"

// CartItem is one line of a user's cart. A user has at most one line per
// slipper; adding the same slipper again raises its quantity.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_slipper" json:"-"`
	SlipperID uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_slipper;index" json:"slipper_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slipper Slipper `gorm:"foreignKey:SlipperID" json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
