package repository

import (
	"context"

	"slippers/internal/domain"
	"slippers/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByReference looks a payment up by the gateway's payment UUID.
func (r *PaymentRepository) GetByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("external_reference = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByShopTransactionID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("shop_transaction_id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionStatus moves the payment to next only if its current status is one
// of next's predecessors. It reports whether the row changed; false means the
// transition was a no-op (stale, duplicate or disallowed).
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id uint, next domain.PaymentStatus) (bool, error) {
	from := domain.Predecessors(next)
	if len(from) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetGatewayResult records what the gateway returned for a created payment.
// It does not touch status, so a callback that overtook the create response
// keeps its effect.
func (r *PaymentRepository) SetGatewayResult(ctx context.Context, id uint, ref, redirectURL, raw string) error {
	updates := map[string]interface{}{"redirect_url": redirectURL, "raw": raw}
	if ref != "" {
		updates["external_reference"] = ref
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// SetReferenceIfMissing stores the gateway reference learned from a callback
// when the create response has not recorded one yet.
func (r *PaymentRepository) SetReferenceIfMissing(ctx context.Context, id uint, ref string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND external_reference IS NULL", id).
		Update("external_reference", ref).Error
}

func (r *PaymentRepository) SetRaw(ctx context.Context, id uint, raw string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Update("raw", raw).Error
}

// LatestForOrder returns the newest payment of an order (created_at, then id).
func (r *PaymentRepository) LatestForOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("created_at DESC").Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListForOrder(ctx context.Context, orderID uint) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("created_at DESC").Order("id DESC").
		Find(&list).Error
	return list, err
}

// ClaimRefund marks a PAID payment as having a refund in flight. Exactly one
// concurrent caller gets true.
func (r *PaymentRepository) ClaimRefund(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND refund_claimed = ?", id, domain.PaymentPaid, false).
		Update("refund_claimed", true)
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) ReleaseRefund(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Update("refund_claimed", false).Error
}

func (r *PaymentRepository) AppendEvent(ctx context.Context, e *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Events returns the status history of a payment, oldest first.
func (r *PaymentRepository) Events(ctx context.Context, paymentID uint) ([]models.PaymentEvent, error) {
	var list []models.PaymentEvent
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id ASC").Find(&list).Error
	return list, err
}

func statusStrings(in []domain.PaymentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
