package repository

import (
	"context"

	"slippers/internal/domain"
	"slippers/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order together with its items.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// AdvanceToConfirmed sets the order to confirmed unless it already is.
func (r *OrderRepository) AdvanceToConfirmed(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, domain.OrderStatusConfirmed).
		Update("status", domain.OrderStatusConfirmed)
	return res.RowsAffected == 1, res.Error
}

// Cancel moves a pending order to cancelled. false means the order was not pending.
func (r *OrderRepository) Cancel(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusPending).
		Update("status", domain.OrderStatusCancelled)
	return res.RowsAffected == 1, res.Error
}

type OrderFilter struct {
	UserID uint // 0 = all users
	Status string
	// PaidOrRefunded keeps orders whose latest payment is PAID or REFUNDED.
	PaidOrRefunded bool
	Page           int
	Limit          int
}

// latestPaymentIn matches orders whose latest payment (created_at, ties by id)
// has one of the given statuses.
const latestPaymentIn = `EXISTS (
	SELECT 1 FROM payments p
	WHERE p.order_id = orders.id AND p.status IN ?
	AND NOT EXISTS (
		SELECT 1 FROM payments p2
		WHERE p2.order_id = p.order_id
		AND (p2.created_at > p.created_at OR (p2.created_at = p.created_at AND p2.id > p.id))
	)
)`

// List returns a page of orders, newest first, with their items.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != 0 {
		q = q.Where("orders.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}
	if f.PaidOrRefunded {
		q = q.Where(latestPaymentIn, statusStrings([]domain.PaymentStatus{domain.PaymentPaid, domain.PaymentRefunded}))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Order
	err := q.Preload("Items").
		Order("orders.created_at DESC").Order("orders.id DESC").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&list).Error
	return list, total, err
}
