package models

import (
	"time"

	"slippers/internal/domain"
)

// Payment is one attempt to pay an order. Rows are never deleted; an order may
// have several and the latest by CreatedAt (then ID) is authoritative.
type Payment struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	OrderID           uint                 `gorm:"not null;index:idx_payments_order_status" json:"order_id"`
	ShopTransactionID string               `gorm:"size:64;uniqueIndex;not null" json:"shop_transaction_id"`
	ExternalReference *string              `gorm:"size:64;uniqueIndex" json:"external_reference"` // octo_payment_UUID; nil until the gateway answers
	AmountMinor       int64                `gorm:"not null" json:"amount_minor"`
	Currency          string               `gorm:"size:8;not null;default:'UZS'" json:"currency"`
	Status            domain.PaymentStatus `gorm:"size:20;not null;index:idx_payments_order_status" json:"status"`
	RedirectURL       string               `gorm:"size:512" json:"redirect_url,omitempty"`
	Raw               string               `gorm:"size:4000" json:"-"`
	RefundClaimed     bool                 `gorm:"not null;default:false" json:"-"` // set while a refund call is in flight
	CreatedAt         time.Time            `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) Reference() string {
	if p.ExternalReference != nil {
		return *p.ExternalReference
	}
	return ""
}

// PaymentEvent is the append-only status history of a payment.
type PaymentEvent struct {
	ID             uint                 `gorm:"primaryKey" json:"id"`
	PaymentID      uint                 `gorm:"not null;index" json:"payment_id"`
	FromStatus     domain.PaymentStatus `gorm:"size:20" json:"from_status"`
	ToStatus       domain.PaymentStatus `gorm:"size:20;not null" json:"to_status"`
	Source         string               `gorm:"size:20;not null" json:"source"` // create | notify | refund | sync
	ProviderStatus string               `gorm:"size:64" json:"provider_status,omitempty"`
	Detail         string               `gorm:"size:1024" json:"detail,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
