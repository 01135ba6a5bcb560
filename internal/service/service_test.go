package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"slippers/config"
	"slippers/internal/cache"
	"slippers/internal/database"
	"slippers/internal/domain"
	"slippers/internal/models"
	"slippers/internal/repository"
	"slippers/pkg/payment"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider records calls and returns canned responses.
type fakeProvider struct {
	mu        sync.Mutex
	nextRef   string
	createErr error
	refundErr error
	status    string
	statusErr error
	onCreate  func(req payment.CreateRequest)
	onRefund  func(req payment.RefundRequest)
	creates   []payment.CreateRequest
	refunds   []payment.RefundRequest
}

func (f *fakeProvider) CreatePayment(ctx context.Context, req payment.CreateRequest) (*payment.CreateResponse, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	ref, err, hook := f.nextRef, f.createErr, f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return &payment.CreateResponse{ExternalReference: ref, RedirectURL: "https://pay.octo.uz/" + ref, Raw: `{"error":0}`}, nil
}

func (f *fakeProvider) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResponse, error) {
	f.mu.Lock()
	f.refunds = append(f.refunds, req)
	err, hook := f.refundErr, f.onRefund
	f.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return &payment.RefundResponse{RefundReference: "RF-1", Status: "succeeded"}, nil
}

func (f *fakeProvider) Status(ctx context.Context, req payment.StatusRequest) (*payment.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &payment.StatusResponse{ProviderStatus: f.status, ExternalReference: req.ExternalReference}, nil
}

type recNotifier struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	owners []uint
}

func (r *recNotifier) NotifyOrder(ownerID uint, ev domain.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, ownerID)
	r.events = append(r.events, ev)
}

func (r *recNotifier) all() []domain.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderEvent(nil), r.events...)
}

type testEnv struct {
	store    *repository.Store
	provider *fakeProvider
	notifier *recNotifier
	cache    *cache.RedisCache
	redis    *miniredis.Miniredis
	payments *PaymentService
	orders   *OrderService
	carts    *CartService

	customer Caller
	other    Caller
	admin    Caller
	slipper  *models.Slipper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "svc.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	store := repository.NewStore(db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	oc := cache.NewRedisCache(client, 0)

	env := &testEnv{
		store:    store,
		provider: &fakeProvider{nextRef: "R1"},
		notifier: &recNotifier{},
		cache:    oc,
		redis:    mr,
	}
	log := zap.NewNop()
	env.payments = NewPaymentService(store, env.provider, oc, env.notifier, log, "")
	env.orders = NewOrderService(store, oc, env.notifier, log, 50, 100)
	env.carts = NewCartService(store, log, 50)

	ctx := context.Background()
	users := []*models.User{
		{Email: "buyer@slippers.uz", Role: domain.RoleCustomer},
		{Email: "other@slippers.uz", Role: domain.RoleCustomer},
		{Email: "admin@slippers.uz", Role: domain.RoleAdmin},
	}
	for _, u := range users {
		require.NoError(t, store.Users.Create(ctx, u))
	}
	env.customer = Caller{UserID: users[0].ID, Role: domain.RoleCustomer}
	env.other = Caller{UserID: users[1].ID, Role: domain.RoleCustomer}
	env.admin = Caller{UserID: users[2].ID, Role: domain.RoleAdmin, IP: "10.0.0.1", UserAgent: "test"}

	env.slipper = &models.Slipper{Name: "Classic", PriceMinor: 5000000, IsActive: true}
	require.NoError(t, store.Slippers.Create(ctx, env.slipper))
	return env
}

// newOrder places a one-item order worth 50000.00 for the customer.
func (e *testEnv) newOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := e.orders.Create(context.Background(), e.customer, []OrderItemInput{{SlipperID: e.slipper.ID, Quantity: 1}}, "")
	require.NoError(t, err)
	return o
}

func (e *testEnv) payment(t *testing.T, id uint) *models.Payment {
	t.Helper()
	p, err := e.store.Payments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) order(t *testing.T, id uint) *models.Order {
	t.Helper()
	o, err := e.store.Orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

// createPaid runs create + paid notify for a fresh order and returns both ids.
func (e *testEnv) createPaid(t *testing.T, ref string) (orderID, paymentID uint) {
	t.Helper()
	ctx := context.Background()
	o := e.newOrder(t)
	e.provider.mu.Lock()
	e.provider.nextRef = ref
	e.provider.mu.Unlock()
	res, err := e.payments.Create(ctx, e.customer, CreatePaymentInput{OrderID: o.ID})
	require.NoError(t, err)
	_, err = e.payments.HandleNotify(ctx, NotifyInput{ExternalReference: ref, Status: "paid"})
	require.NoError(t, err)
	return o.ID, res.PaymentID
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
