package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slippers/internal/cache"
	"slippers/internal/domain"
	"slippers/internal/models"
	"slippers/internal/repository"
	"slippers/pkg/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService struct {
	store         *repository.Store
	maxQtyPerItem int
	pageLimit     int
	effects
}

func NewOrderService(store *repository.Store, orderCache cache.OrderCache, notifier Notifier, log *zap.Logger, maxQtyPerItem, pageLimit int) *OrderService {
	if maxQtyPerItem <= 0 {
		maxQtyPerItem = 50
	}
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &OrderService{
		store:         store,
		maxQtyPerItem: maxQtyPerItem,
		pageLimit:     pageLimit,
		effects:       newEffects(orderCache, notifier, log),
	}
}

type OrderItemInput struct {
	SlipperID uint `json:"slipper_id"`
	Quantity  int  `json:"quantity"`
}

// Create places a pending order, snapshotting unit prices from the catalog.
// Repeated slipper ids are merged.
func (s *OrderService) Create(ctx context.Context, caller Caller, items []OrderItemInput, notes string) (*models.Order, error) {
	order, err := s.build(ctx, s.store, caller, items, notes)
	if err != nil {
		return nil, err
	}
	if err := s.store.Orders.Create(ctx, order); err != nil {
		return nil, err
	}
	s.placed(ctx, order, "items")
	return order, nil
}

// CreateFromCart places an order from the caller's cart lines. With
// clearCart the cart is emptied in the same transaction.
func (s *OrderService) CreateFromCart(ctx context.Context, caller Caller, notes string, clearCart bool) (*models.Order, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	var order *models.Order
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		lines, err := tx.Carts.Items(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
		}
		order, err = s.build(ctx, tx, caller, orderInput(lines), notes)
		if err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		if clearCart {
			return tx.Carts.Clear(ctx, caller.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.placed(ctx, order, "cart")
	return order, nil
}

func (s *OrderService) placed(ctx context.Context, order *models.Order, source string) {
	s.invalidate(ctx, order)
	s.log.Info("[order] created", zap.Uint("order_id", order.ID), zap.String("number", order.Number),
		zap.Int64("total_minor", order.TotalMinor), zap.String("source", source))
}

// build validates items and prices them against store.
func (s *OrderService) build(ctx context.Context, store *repository.Store, caller Caller, items []OrderItemInput, notes string) (*models.Order, error) {
	if caller.UserID == 0 {
		return nil, ErrForbidden
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrInvalidRequest)
	}
	qty := make(map[uint]int, len(items))
	var ids []uint
	for _, it := range items {
		if it.SlipperID == 0 || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: slipper_id and a positive quantity are required", ErrInvalidRequest)
		}
		if _, seen := qty[it.SlipperID]; !seen {
			ids = append(ids, it.SlipperID)
		}
		qty[it.SlipperID] += it.Quantity
		if qty[it.SlipperID] > s.maxQtyPerItem {
			return nil, fmt.Errorf("%w: quantity of slipper %d exceeds %d", ErrInvalidRequest, it.SlipperID, s.maxQtyPerItem)
		}
	}
	if len(notes) > 500 {
		return nil, fmt.Errorf("%w: notes are too long", ErrInvalidRequest)
	}
	slippers, err := store.Slippers.ActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	price := make(map[uint]int64, len(slippers))
	for _, sl := range slippers {
		price[sl.ID] = sl.PriceMinor
	}
	order := &models.Order{
		Number: newOrderNumber(),
		UserID: caller.UserID,
		Status: domain.OrderStatusPending,
		Notes:  notes,
	}
	for _, id := range ids {
		unit, ok := price[id]
		if !ok {
			return nil, fmt.Errorf("%w: slipper %d is not available", ErrInvalidRequest, id)
		}
		item := models.OrderItem{SlipperID: id, Quantity: qty[id], UnitPriceMinor: unit}
		order.Items = append(order.Items, item)
		order.TotalMinor += item.LineTotal()
	}
	return order, nil
}

func newOrderNumber() string {
	return "SL-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Get returns an order with its items, from cache when possible.
func (s *OrderService) Get(ctx context.Context, caller Caller, id uint) (*models.Order, error) {
	o, err := s.cachedOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.owns(o.UserID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// cachedOrder reads through the cache under the order's current generation.
// When the generation cannot be read the cache is bypassed entirely.
func (s *OrderService) cachedOrder(ctx context.Context, id uint) (*models.Order, error) {
	ver, verr := s.cache.OrderVersion(ctx, id)
	if verr != nil {
		s.log.Warn("[cache] order version", zap.Uint("order_id", id), zap.Error(verr))
		return s.load(ctx, id)
	}
	o, err := s.cache.GetOrder(ctx, id, ver)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("[cache] get order", zap.Uint("order_id", id), zap.Error(err))
	}
	o, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetOrder(ctx, o, ver); err != nil {
		s.log.Warn("[cache] set order", zap.Uint("order_id", id), zap.Error(err))
	}
	return o, nil
}

func (s *OrderService) load(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.store.Orders.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

type ListQuery struct {
	Status  string
	Finance string // "" or domain.FinancePaidRefunded
	UserID  uint   // admin only; 0 = all users
	Page    int
	Limit   int
}

type OrderPage struct {
	Items []models.Order `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// List returns a page of orders. Customers only see their own orders; with
// Finance set it is the finance view: orders whose latest payment is PAID or
// REFUNDED.
func (s *OrderService) List(ctx context.Context, caller Caller, q ListQuery) (*OrderPage, error) {
	switch q.Status {
	case "", domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, q.Status)
	}
	if q.Finance != "" && q.Finance != domain.FinancePaidRefunded {
		return nil, fmt.Errorf("%w: unknown finance filter %q", ErrInvalidRequest, q.Finance)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > s.pageLimit {
		q.Limit = s.pageLimit
	}
	userID := caller.UserID
	if caller.IsAdmin() {
		userID = q.UserID
	}
	key := cache.ListKey{UserID: userID, Status: q.Status, Finance: q.Finance, Page: q.Page, Limit: q.Limit}
	ver, verr := s.cache.ListVersion(ctx, userID)
	if verr != nil {
		s.log.Warn("[cache] list version", zap.Error(verr))
	} else {
		key.Version = ver
		if page, err := s.cache.GetList(ctx, key); err == nil {
			return &OrderPage{Items: page.Items, Total: page.Total, Page: q.Page, Limit: q.Limit}, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("[cache] get list", zap.Error(err))
		}
	}

	items, total, err := s.store.Orders.List(ctx, repository.OrderFilter{
		UserID:         userID,
		Status:         q.Status,
		PaidOrRefunded: q.Finance == domain.FinancePaidRefunded,
		Page:           q.Page,
		Limit:          q.Limit,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Order{}
	}
	if verr == nil {
		if err := s.cache.SetList(ctx, key, &cache.OrderPage{Items: items, Total: total}); err != nil {
			s.log.Warn("[cache] set list", zap.Error(err))
		}
	}
	return &OrderPage{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// Cancel moves a pending order to cancelled.
func (s *OrderService) Cancel(ctx context.Context, caller Caller, id uint) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.owns(o.UserID) {
		return nil, ErrForbidden
	}
	ok, err := s.store.Orders.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}
	o.Status = domain.OrderStatusCancelled
	uid := caller.UserID
	if err := s.store.Audit.Create(ctx, &models.AuditLog{
		UserID:     &uid,
		Action:     "order.cancel",
		Resource:   "order",
		ResourceID: strconv.FormatUint(uint64(id), 10),
		IP:         caller.IP,
		UserAgent:  payment.Truncate(caller.UserAgent, 512),
	}); err != nil {
		s.log.Error("[audit] write failed", zap.String("action", "order.cancel"), zap.Error(err))
	}
	s.orderChanged(ctx, o, nil)
	return o, nil
}

// Payments returns the payment attempts of an order, newest first.
func (s *OrderService) Payments(ctx context.Context, caller Caller, id uint) ([]models.Payment, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.owns(o.UserID) {
		return nil, ErrForbidden
	}
	list, err := s.store.Payments.ListForOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Payment{}
	}
	return list, nil
}
