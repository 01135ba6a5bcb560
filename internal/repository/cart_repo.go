package repository

import (
	"context"
	"time"

	"slippers/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Items returns the user's cart lines in insertion order with their slippers.
func (r *CartRepository) Items(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var list []models.CartItem
	err := r.db.WithContext(ctx).Preload("Slipper").
		Where("user_id = ?", userID).Order("id ASC").Find(&list).Error
	return list, err
}

// Add inserts a line or raises the quantity of the existing one and returns
// the resulting quantity.
func (r *CartRepository) Add(ctx context.Context, userID, slipperID uint, qty int) (int, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "slipper_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": time.Now(),
		}),
	}).Create(&models.CartItem{UserID: userID, SlipperID: slipperID, Quantity: qty}).Error
	if err != nil {
		return 0, err
	}
	var it models.CartItem
	if err := db.Where("user_id = ? AND slipper_id = ?", userID, slipperID).First(&it).Error; err != nil {
		return 0, err
	}
	return it.Quantity, nil
}

// SetQuantity reports whether the line exists for the user.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, itemID uint, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Updates(map[string]interface{}{"quantity": qty, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

// Delete reports whether the line existed for the user.
func (r *CartRepository) Delete(ctx context.Context, userID, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *CartRepository) Clear(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

type CartTotals struct {
	Items       int64 `json:"total_items"`
	Quantity    int64 `json:"total_quantity"`
	AmountMinor int64 `json:"total_amount_minor"`
}

// Totals aggregates the cart in SQL at current catalog prices.
func (r *CartRepository) Totals(ctx context.Context, userID uint) (CartTotals, error) {
	var t CartTotals
	err := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Select("COUNT(cart_items.id) AS items, COALESCE(SUM(cart_items.quantity), 0) AS quantity, "+
			"COALESCE(SUM(cart_items.quantity * slippers.price_minor), 0) AS amount_minor").
		Joins("JOIN slippers ON slippers.id = cart_items.slipper_id").
		Where("cart_items.user_id = ?", userID).
		Scan(&t).Error
	return t, err
}
