package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"slippers/config"
	"slippers/internal/database"
	"slippers/internal/domain"
	"slippers/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "repo.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewStore(db)
}

func seedOrder(t *testing.T, s *Store, userID uint) *models.Order {
	t.Helper()
	o := &models.Order{
		Number:     "SL-" + uuid.NewString()[:8],
		UserID:     userID,
		Status:     domain.OrderStatusPending,
		TotalMinor: 5000000,
		Items:      []models.OrderItem{{SlipperID: 1, Quantity: 2, UnitPriceMinor: 2500000}},
	}
	require.NoError(t, s.Orders.Create(context.Background(), o))
	return o
}

func seedPayment(t *testing.T, s *Store, orderID uint, status domain.PaymentStatus, at time.Time) *models.Payment {
	t.Helper()
	p := &models.Payment{
		OrderID:           orderID,
		ShopTransactionID: uuid.NewString(),
		AmountMinor:       5000000,
		Currency:          domain.CurrencyUZS,
		Status:            status,
		CreatedAt:         at,
	}
	require.NoError(t, s.Payments.Create(context.Background(), p))
	return p
}

func TestPaymentTransitionStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)
	p := seedPayment(t, s, o.ID, domain.PaymentCreated, time.Now())

	ok, err := s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentPending)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	// duplicate
	ok, err = s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentPaid)
	require.NoError(t, err)
	assert.False(t, ok)

	// terminal does not regress
	ok, err = s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentRefunded)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, got.Status)

	ok, err = s.Payments.TransitionStatus(ctx, p.ID, domain.PaymentCreated)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimRefund(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)
	pending := seedPayment(t, s, o.ID, domain.PaymentPending, time.Now())
	paid := seedPayment(t, s, o.ID, domain.PaymentPaid, time.Now())

	ok, err := s.Payments.ClaimRefund(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, ok, "only PAID payments can be claimed")

	ok, err = s.Payments.ClaimRefund(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Payments.ClaimRefund(ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim loses")

	require.NoError(t, s.Payments.ReleaseRefund(ctx, paid.ID))
	ok, err = s.Payments.ClaimRefund(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPaymentLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)
	p := seedPayment(t, s, o.ID, domain.PaymentCreated, time.Now())

	require.NoError(t, s.Payments.SetGatewayResult(ctx, p.ID, "R1", "https://pay/R1", `{"error":0}`))
	byRef, err := s.Payments.GetByReference(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRef.ID)
	assert.Equal(t, "https://pay/R1", byRef.RedirectURL)
	assert.Equal(t, domain.PaymentCreated, byRef.Status)

	byTx, err := s.Payments.GetByShopTransactionID(ctx, p.ShopTransactionID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byTx.ID)

	_, err = s.Payments.GetByReference(ctx, "nope")
	assert.Error(t, err)
}

func TestLatestForOrderTieBreaksByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seedPayment(t, s, o.ID, domain.PaymentFailed, at.Add(-time.Minute))
	seedPayment(t, s, o.ID, domain.PaymentCancelled, at)
	last := seedPayment(t, s, o.ID, domain.PaymentPaid, at)

	got, err := s.Payments.LatestForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)

	list, err := s.Payments.ListForOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, last.ID, list[0].ID)
}

func TestPaymentEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)
	p := seedPayment(t, s, o.ID, domain.PaymentCreated, time.Now())
	require.NoError(t, s.Payments.AppendEvent(ctx, &models.PaymentEvent{PaymentID: p.ID, ToStatus: domain.PaymentCreated, Source: domain.PaymentSourceCreate}))
	require.NoError(t, s.Payments.AppendEvent(ctx, &models.PaymentEvent{PaymentID: p.ID, FromStatus: domain.PaymentCreated, ToStatus: domain.PaymentPending, Source: domain.PaymentSourceCreate}))
	evs, err := s.Payments.Events(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.PaymentPending, evs[1].ToStatus)
}

func TestOrderConditionalUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)

	got, err := s.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(5000000), got.Items[0].LineTotal())

	ok, err := s.Orders.AdvanceToConfirmed(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Orders.AdvanceToConfirmed(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Orders.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok, "confirmed orders cannot be cancelled")

	other := seedOrder(t, s, 1)
	ok, err = s.Orders.Cancel(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrderListFinanceView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// latest PAID after earlier attempts
	paid := seedOrder(t, s, 1)
	seedPayment(t, s, paid.ID, domain.PaymentCreated, base)
	seedPayment(t, s, paid.ID, domain.PaymentPending, base.Add(time.Minute))
	seedPayment(t, s, paid.ID, domain.PaymentPaid, base.Add(2*time.Minute))

	// latest FAILED, excluded
	failed := seedOrder(t, s, 1)
	seedPayment(t, s, failed.ID, domain.PaymentCreated, base)
	seedPayment(t, s, failed.ID, domain.PaymentFailed, base.Add(time.Minute))

	// PAID earlier but a newer attempt exists, excluded
	superseded := seedOrder(t, s, 2)
	seedPayment(t, s, superseded.ID, domain.PaymentPaid, base)
	seedPayment(t, s, superseded.ID, domain.PaymentCreated, base.Add(time.Minute))

	refunded := seedOrder(t, s, 2)
	seedPayment(t, s, refunded.ID, domain.PaymentRefunded, base)

	// no payments at all
	seedOrder(t, s, 1)

	list, total, err := s.Orders.List(ctx, OrderFilter{PaidOrRefunded: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	ids := []uint{}
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []uint{paid.ID, refunded.ID}, ids)

	list, total, err = s.Orders.List(ctx, OrderFilter{UserID: 1, PaidOrRefunded: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, paid.ID, list[0].ID)
	assert.Len(t, list[0].Items, 1)

	_, total, err = s.Orders.List(ctx, OrderFilter{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestOrderListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedOrder(t, s, 3)
	}
	_, err := s.Orders.Cancel(ctx, 1)
	require.NoError(t, err)

	page, total, err := s.Orders.List(ctx, OrderFilter{UserID: 3, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	cancelled, total, err := s.Orders.List(ctx, OrderFilter{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, uint(1), cancelled[0].ID)
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := seedOrder(t, s, 1)

	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.Orders.AdvanceToConfirmed(ctx, o.ID); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := s.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestSlipperActiveByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := &models.Slipper{Name: "Classic", PriceMinor: 2500000, IsActive: true}
	b := &models.Slipper{Name: "Retired", PriceMinor: 1000000, IsActive: true}
	require.NoError(t, s.Slippers.Create(ctx, a))
	require.NoError(t, s.Slippers.Create(ctx, b))
	require.NoError(t, s.DB().Model(b).Update("is_active", false).Error)

	list, err := s.Slippers.ActiveByIDs(ctx, []uint{a.ID, b.ID, 999})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	list, err = s.Slippers.ActiveByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAuditAndUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := &models.User{Email: "a@slippers.uz", Role: domain.RoleAdmin}
	require.NoError(t, s.Users.Create(ctx, u))
	got, err := s.Users.GetByEmail(ctx, "a@slippers.uz")
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())

	require.NoError(t, s.Audit.Create(ctx, &models.AuditLog{UserID: &u.ID, Action: "payment.refund", Resource: "payment", ResourceID: "7"}))
	logs, err := s.Audit.ListByResource(ctx, "payment", "7")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment.refund", logs[0].Action)
}

func TestCartRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := &models.Slipper{Name: "Home", PriceMinor: 2500000, IsActive: true}
	b := &models.Slipper{Name: "Beach", PriceMinor: 1000000, IsActive: true}
	require.NoError(t, s.Slippers.Create(ctx, a))
	require.NoError(t, s.Slippers.Create(ctx, b))

	qty, err := s.Carts.Add(ctx, 1, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
	qty, err = s.Carts.Add(ctx, 1, a.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, qty, "same slipper merges into one line")
	_, err = s.Carts.Add(ctx, 1, b.ID, 1)
	require.NoError(t, err)
	_, err = s.Carts.Add(ctx, 2, b.ID, 4)
	require.NoError(t, err)

	items, err := s.Carts.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].SlipperID)
	assert.Equal(t, "Home", items[0].Slipper.Name)

	totals, err := s.Carts.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, CartTotals{Items: 2, Quantity: 6, AmountMinor: 5*2500000 + 1000000}, totals)

	// user 2 cannot touch user 1's lines
	ok, err := s.Carts.SetQuantity(ctx, 2, items[0].ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Carts.Delete(ctx, 2, items[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Carts.SetQuantity(ctx, 1, items[0].ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Carts.Delete(ctx, 1, items[1].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	totals, err = s.Carts.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, CartTotals{Items: 1, Quantity: 1, AmountMinor: 2500000}, totals)

	require.NoError(t, s.Carts.Clear(ctx, 1))
	totals, err = s.Carts.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, CartTotals{}, totals)
	other, err := s.Carts.Items(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, other, 1, "clear is scoped to one user")
}
