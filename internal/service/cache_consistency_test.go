package service

import (
	"context"
	"sync"
	"testing"

	"slippers/internal/cache"
	"slippers/internal/domain"
	"slippers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedCache parks the first cache write until release is closed, so a
// reader can be held between loading rows and storing them.
type gatedCache struct {
	*cache.RedisCache
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedCache(c *cache.RedisCache) *gatedCache {
	return &gatedCache{RedisCache: c, reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedCache) hold() {
	g.once.Do(func() {
		close(g.reached)
		<-g.release
	})
}

func (g *gatedCache) SetList(ctx context.Context, k cache.ListKey, page *cache.OrderPage) error {
	g.hold()
	return g.RedisCache.SetList(ctx, k, page)
}

func (g *gatedCache) SetOrder(ctx context.Context, o *models.Order, version int64) error {
	g.hold()
	return g.RedisCache.SetOrder(ctx, o, version)
}

func pendingPayment(t *testing.T, env *testEnv, ref string) *models.Order {
	t.Helper()
	o := env.newOrder(t)
	env.provider.nextRef = ref
	_, err := env.payments.Create(context.Background(), env.customer, CreatePaymentInput{OrderID: o.ID})
	require.NoError(t, err)
	return o
}

func TestSlowListingReaderDoesNotHideNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pendingPayment(t, env, "R-G")

	gated := newGatedCache(env.cache)
	orders := NewOrderService(env.store, gated, env.notifier, zap.NewNop(), 50, 100)
	q := ListQuery{Finance: domain.FinancePaidRefunded}

	done := make(chan *OrderPage, 1)
	go func() {
		page, err := orders.List(ctx, env.customer, q)
		assert.NoError(t, err)
		done <- page
	}()
	<-gated.reached
	_, err := env.payments.HandleNotify(ctx, NotifyInput{ExternalReference: "R-G", Status: "paid"})
	require.NoError(t, err)
	close(gated.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Empty(t, stale.Items, "the slow reader loaded rows before the payment")

	for i := 0; i < 2; i++ {
		page, err := orders.List(ctx, env.customer, q)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, domain.OrderStatusConfirmed, page.Items[0].Status)
	}
}

func TestSlowOrderReaderDoesNotHideNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := pendingPayment(t, env, "R-H")

	gated := newGatedCache(env.cache)
	orders := NewOrderService(env.store, gated, env.notifier, zap.NewNop(), 50, 100)

	done := make(chan *models.Order, 1)
	go func() {
		got, err := orders.Get(ctx, env.customer, o.ID)
		assert.NoError(t, err)
		done <- got
	}()
	<-gated.reached
	_, err := env.payments.HandleNotify(ctx, NotifyInput{ExternalReference: "R-H", Status: "paid"})
	require.NoError(t, err)
	close(gated.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, domain.OrderStatusPending, stale.Status)

	got, err := orders.Get(ctx, env.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
}
