package service

import (
	"context"
	"time"

	"slippers/internal/cache"
	"slippers/internal/domain"
	"slippers/internal/models"

	"go.uber.org/zap"
)

// Notifier receives order events after commit. Implementations must not block.
type Notifier interface {
	NotifyOrder(ownerID uint, ev domain.OrderEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifyOrder(uint, domain.OrderEvent) {}

const sideEffectTimeout = 2 * time.Second

// effects runs the post-commit work shared by order and payment changes.
type effects struct {
	cache    cache.OrderCache
	notifier Notifier
	log      *zap.Logger
}

func newEffects(c cache.OrderCache, n Notifier, log *zap.Logger) effects {
	if c == nil {
		c = cache.Noop{}
	}
	if n == nil {
		n = noopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return effects{cache: c, notifier: n, log: log}
}

// invalidate drops cached reads of the order. A failure only delays
// freshness until the TTL expires, so it is logged and ignored.
func (e effects) invalidate(ctx context.Context, o *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := e.cache.Invalidate(ctx, o.ID, o.UserID); err != nil {
		e.log.Warn("[cache] invalidate failed", zap.Uint("order_id", o.ID), zap.Error(err))
	}
}

func (e effects) orderChanged(ctx context.Context, o *models.Order, p *models.Payment) {
	e.invalidate(ctx, o)
	ev := domain.OrderEvent{Type: domain.EventOrderStatus, OrderID: o.ID, OrderStatus: o.Status}
	if p != nil {
		ev.Type = domain.EventPaymentStatus
		ev.PaymentID = p.ID
		ev.PaymentStatus = p.Status
	}
	e.notifier.NotifyOrder(o.UserID, ev)
}
