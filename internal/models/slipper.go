package models

import "time"

// Slipper is the catalog row orders snapshot prices from.
type Slipper struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	PriceMinor int64     `gorm:"not null" json:"price_minor"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Slipper) TableName() string {
	return "slippers"
}
