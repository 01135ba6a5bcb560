package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one *gorm.DB so a unit of work can run
// every repository against the same transaction.
type Store struct {
	db *gorm.DB

	Users    *UserRepository
	Slippers *SlipperRepository
	Orders   *OrderRepository
	Payments *PaymentRepository
	Audit    *AuditRepository
	Carts    *CartRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewUserRepository(db),
		Slippers: NewSlipperRepository(db),
		Orders:   NewOrderRepository(db),
		Payments: NewPaymentRepository(db),
		Audit:    NewAuditRepository(db),
		Carts:    NewCartRepository(db),
	}
}

// WithTx runs fn in a transaction. fn must only use the Store it is given;
// returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) DB() *gorm.DB { return s.db }
