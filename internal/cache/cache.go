package cache

import (
	"context"
	"errors"
	"fmt"

	"slippers/internal/models"
)

var ErrCacheMiss = errors.New("cache miss")

// OrderPage is one cached page of an order listing.
type OrderPage struct {
	Items []models.Order `json:"items"`
	Total int64          `json:"total"`
}

// ListKey identifies a listing. UserID 0 is an admin listing across users.
// Version is the generation returned by ListVersion before the rows were read.
type ListKey struct {
	UserID  uint
	Status  string
	Finance string
	Page    int
	Limit   int
	Version int64
}

// OrderCache caches order reads under generation counters. Keys:
//
//	order:{id}:gen                                        order generation
//	order:{id}:v{gen}                                     single order with items
//	orders:{u{user}|all}:gen                              listing generation
//	orders:{u{user}|all}:v{gen}:{status}:{finance}:{page}:{limit}
//
// Readers fetch the generation first and store what they loaded under it.
// Invalidate bumps the generations, so a page loaded before a write can only
// land under a generation nobody reads any more.
type OrderCache interface {
	OrderVersion(ctx context.Context, id uint) (int64, error)
	GetOrder(ctx context.Context, id uint, version int64) (*models.Order, error)
	SetOrder(ctx context.Context, o *models.Order, version int64) error
	ListVersion(ctx context.Context, userID uint) (int64, error)
	GetList(ctx context.Context, k ListKey) (*OrderPage, error)
	SetList(ctx context.Context, k ListKey, page *OrderPage) error
	Invalidate(ctx context.Context, orderID, userID uint) error
}

func orderGenKey(id uint) string {
	return fmt.Sprintf("order:%d:gen", id)
}

func orderKey(id uint, version int64) string {
	return fmt.Sprintf("order:%d:v%d", id, version)
}

func listOwner(userID uint) string {
	if userID == 0 {
		return "all"
	}
	return fmt.Sprintf("u%d", userID)
}

func listGenKey(userID uint) string {
	return fmt.Sprintf("orders:%s:gen", listOwner(userID))
}

func listKey(k ListKey) string {
	return fmt.Sprintf("orders:%s:v%d:%s:%s:%d:%d", listOwner(k.UserID), k.Version, k.Status, k.Finance, k.Page, k.Limit)
}

// Noop never stores anything. Used when Redis is not configured.
type Noop struct{}

func (Noop) OrderVersion(context.Context, uint) (int64, error) { return 0, nil }
func (Noop) GetOrder(context.Context, uint, int64) (*models.Order, error) { return nil, ErrCacheMiss }
func (Noop) SetOrder(context.Context, *models.Order, int64) error { return nil }
func (Noop) ListVersion(context.Context, uint) (int64, error) { return 0, nil }
func (Noop) GetList(context.Context, ListKey) (*OrderPage, error) { return nil, ErrCacheMiss }
func (Noop) SetList(context.Context, ListKey, *OrderPage) error { return nil }
func (Noop) Invalidate(context.Context, uint, uint) error { return nil }
