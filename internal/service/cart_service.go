package service

import (
	"context"
	"fmt"
	"strconv"

	"slippers/internal/models"
	"slippers/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartService manages the per-user cart orders can be placed from.
type CartService struct {
	store         *repository.Store
	maxQtyPerItem int
	log           *zap.Logger
	sfg           singleflight.Group
}

func NewCartService(store *repository.Store, log *zap.Logger, maxQtyPerItem int) *CartService {
	if maxQtyPerItem <= 0 {
		maxQtyPerItem = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{store: store, maxQtyPerItem: maxQtyPerItem, log: log}
}

type CartLine struct {
	ID             uint   `json:"id"`
	SlipperID      uint   `json:"slipper_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TotalMinor     int64  `json:"total_price_minor"`
	Available      bool   `json:"available"`
}

type Cart struct {
	Items []CartLine `json:"items"`
	repository.CartTotals
}

// Get returns the caller's cart priced at current catalog prices. Concurrent
// reads of the same cart share one query; callers must not modify the result.
func (s *CartService) Get(ctx context.Context, caller Caller) (*Cart, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	v, err, _ := s.sfg.Do(strconv.FormatUint(uint64(caller.UserID), 10), func() (interface{}, error) {
		return s.load(ctx, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart), nil
}

func (s *CartService) load(ctx context.Context, userID uint) (*Cart, error) {
	rows, err := s.store.Carts.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart := &Cart{Items: make([]CartLine, 0, len(rows))}
	for _, it := range rows {
		line := CartLine{
			ID:             it.ID,
			SlipperID:      it.SlipperID,
			Name:           it.Slipper.Name,
			Quantity:       it.Quantity,
			UnitPriceMinor: it.Slipper.PriceMinor,
			TotalMinor:     it.Slipper.PriceMinor * int64(it.Quantity),
			Available:      it.Slipper.IsActive,
		}
		cart.Items = append(cart.Items, line)
		cart.Quantity += int64(it.Quantity)
		cart.AmountMinor += line.TotalMinor
	}
	cart.CartTotals.Items = int64(len(rows))
	return cart, nil
}

// Totals returns the cart totals without the lines.
func (s *CartService) Totals(ctx context.Context, caller Caller) (repository.CartTotals, error) {
	if caller.UserID == 0 {
		return repository.CartTotals{}, ErrForbidden
	}
	return s.store.Carts.Totals(ctx, caller.UserID)
}

// AddItem puts qty of a slipper into the cart, merging with an existing line.
// The merged quantity is capped like an order line.
func (s *CartService) AddItem(ctx context.Context, caller Caller, slipperID uint, qty int) (*Cart, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	if slipperID == 0 || qty <= 0 {
		return nil, fmt.Errorf("%w: slipper_id and a positive quantity are required", ErrInvalidRequest)
	}
	if qty > s.maxQtyPerItem {
		return nil, fmt.Errorf("%w: quantity exceeds %d", ErrInvalidRequest, s.maxQtyPerItem)
	}
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		active, err := tx.Slippers.ActiveByIDs(ctx, []uint{slipperID})
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return fmt.Errorf("%w: %d", ErrSlipperNotFound, slipperID)
		}
		total, err := tx.Carts.Add(ctx, caller.UserID, slipperID, qty)
		if err != nil {
			return err
		}
		if total > s.maxQtyPerItem {
			return fmt.Errorf("%w: quantity of slipper %d would be %d, limit is %d", ErrInvalidRequest, slipperID, total, s.maxQtyPerItem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[cart] item added", zap.Uint("user_id", caller.UserID), zap.Uint("slipper_id", slipperID), zap.Int("quantity", qty))
	return s.load(ctx, caller.UserID)
}

// UpdateItem sets the quantity of a cart line; zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, caller Caller, itemID uint, qty int) (*Cart, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	if qty < 0 || qty > s.maxQtyPerItem {
		return nil, fmt.Errorf("%w: quantity must be between 0 and %d", ErrInvalidRequest, s.maxQtyPerItem)
	}
	if qty == 0 {
		return s.RemoveItem(ctx, caller, itemID)
	}
	ok, err := s.store.Carts.SetQuantity(ctx, caller.UserID, itemID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartItemNotFound
	}
	return s.load(ctx, caller.UserID)
}

func (s *CartService) RemoveItem(ctx context.Context, caller Caller, itemID uint) (*Cart, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	ok, err := s.store.Carts.Delete(ctx, caller.UserID, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartItemNotFound
	}
	return s.load(ctx, caller.UserID)
}

func (s *CartService) Clear(ctx context.Context, caller Caller) (*Cart, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	if err := s.store.Carts.Clear(ctx, caller.UserID); err != nil {
		return nil, err
	}
	return &Cart{Items: []CartLine{}}, nil
}

// orderInput turns cart lines into order items.
func orderInput(lines []models.CartItem) []OrderItemInput {
	items := make([]OrderItemInput, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItemInput{SlipperID: l.SlipperID, Quantity: l.Quantity})
	}
	return items
}
