package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"slippers/internal/cache"
	"slippers/internal/domain"
	"slippers/internal/models"
	"slippers/internal/repository"
	"slippers/pkg/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService keeps payments and their orders consistent with the gateway.
// Every status change goes through transition, which is a conditional update
// on the payment row; the order is confirmed in the same transaction.
type PaymentService struct {
	store    *repository.Store
	provider payment.Provider
	currency string
	effects
}

func NewPaymentService(store *repository.Store, provider payment.Provider, orderCache cache.OrderCache, notifier Notifier, log *zap.Logger, currency string) *PaymentService {
	if currency == "" {
		currency = domain.CurrencyUZS
	}
	return &PaymentService{
		store:    store,
		provider: provider,
		currency: currency,
		effects:  newEffects(orderCache, notifier, log),
	}
}

type CreatePaymentInput struct {
	OrderID     uint
	Amount      *decimal.Decimal // major units; "amount" alias
	TotalSum    *decimal.Decimal // major units; "total_sum" alias
	Description string
}

type CreatePaymentResult struct {
	PaymentID         uint   `json:"payment_id"`
	OrderID           uint   `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	RedirectURL       string `json:"redirect_url"`
}

// Create starts a new payment attempt for an order and returns the gateway
// redirect URL.
func (s *PaymentService) Create(ctx context.Context, caller Caller, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if in.OrderID == 0 {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidRequest)
	}
	amount, err := payment.NormalizeAmount(in.Amount, in.TotalSum)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	order, err := s.store.Orders.GetByID(ctx, in.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !caller.owns(order.UserID) {
		return nil, ErrForbidden
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidState)
	}
	latest, err := s.store.Payments.LatestForOrder(ctx, order.ID)
	switch {
	case err == nil && (latest.Status == domain.PaymentPaid || latest.Status == domain.PaymentRefunded):
		return nil, fmt.Errorf("%w: order already has a %s payment", ErrInvalidState, latest.Status)
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	switch {
	case amount == 0:
		amount = order.TotalMinor
	case order.TotalMinor > 0 && amount != order.TotalMinor:
		return nil, fmt.Errorf("%w: amount %s does not match order total %s", ErrInvalidRequest,
			payment.FromMinor(amount), payment.FromMinor(order.TotalMinor))
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: order total is zero", ErrInvalidRequest)
	}

	p := &models.Payment{
		OrderID:           order.ID,
		ShopTransactionID: uuid.NewString(),
		AmountMinor:       amount,
		Currency:          s.currency,
		Status:            domain.PaymentCreated,
	}
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.Payments.Create(ctx, p); err != nil {
			return err
		}
		return tx.Payments.AppendEvent(ctx, &models.PaymentEvent{
			PaymentID: p.ID,
			ToStatus:  domain.PaymentCreated,
			Source:    domain.PaymentSourceCreate,
		})
	})
	if err != nil {
		return nil, err
	}

	desc := in.Description
	if desc == "" {
		desc = "Order " + order.Number
	}
	resp, gwErr := s.provider.CreatePayment(ctx, payment.CreateRequest{
		OrderID:           order.ID,
		ShopTransactionID: p.ShopTransactionID,
		AmountMinor:       amount,
		Currency:          s.currency,
		Description:       desc,
	})
	if gwErr != nil {
		s.log.Warn("[OCTO] create payment failed", zap.Uint("payment_id", p.ID), zap.Uint("order_id", order.ID), zap.Error(gwErr))
		if _, err := s.transition(ctx, p, domain.PaymentFailed, domain.PaymentSourceCreate, "", payment.Truncate(gwErr.Error(), 1000), ""); err != nil {
			s.log.Error("[OCTO] marking payment failed", zap.Uint("payment_id", p.ID), zap.Error(err))
		}
		return nil, gatewayError(gwErr)
	}

	// Record the reference first: a callback may already have moved the row
	// past CREATED, in which case the PENDING step is a no-op.
	if err := s.store.Payments.SetGatewayResult(ctx, p.ID, resp.ExternalReference, resp.RedirectURL, payment.Truncate(resp.Raw, 4000)); err != nil {
		return nil, err
	}
	if resp.ExternalReference != "" {
		p.ExternalReference = &resp.ExternalReference
	}
	if _, err := s.transition(ctx, p, domain.PaymentPending, domain.PaymentSourceCreate, "", "", ""); err != nil {
		return nil, err
	}
	s.log.Info("[OCTO] payment created",
		zap.Uint("payment_id", p.ID), zap.Uint("order_id", order.ID),
		zap.String("external_reference", resp.ExternalReference), zap.Int64("amount_minor", amount))

	return &CreatePaymentResult{
		PaymentID:         p.ID,
		OrderID:           order.ID,
		ExternalReference: resp.ExternalReference,
		RedirectURL:       resp.RedirectURL,
	}, nil
}

type NotifyInput struct {
	ExternalReference string
	ShopTransactionID string
	Status            string // provider status string
	Raw               string
}

type NotifyResult struct {
	PaymentID      uint
	Status         domain.PaymentStatus
	Changed        bool
	OrderConfirmed bool
}

// HandleNotify applies a gateway callback. Replays and stale callbacks are
// no-ops; the order is confirmed at most once per payment.
func (s *PaymentService) HandleNotify(ctx context.Context, in NotifyInput) (*NotifyResult, error) {
	if in.ExternalReference == "" && in.ShopTransactionID == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrInvalidRequest)
	}
	p, err := s.findPayment(ctx, in.ExternalReference, in.ShopTransactionID)
	if err != nil {
		if errors.Is(err, ErrUnknownPayment) {
			s.log.Warn("[notify] unknown payment", zap.String("external_reference", in.ExternalReference), zap.String("shop_transaction_id", in.ShopTransactionID))
		}
		return nil, err
	}
	if p.ExternalReference == nil && in.ExternalReference != "" {
		if err := s.store.Payments.SetReferenceIfMissing(ctx, p.ID, in.ExternalReference); err != nil {
			return nil, err
		}
	}
	out := &NotifyResult{PaymentID: p.ID, Status: p.Status}
	next, ok := domain.MapProviderStatus(in.Status)
	if !ok {
		s.log.Warn("[notify] unrecognised provider status, keeping current",
			zap.Uint("payment_id", p.ID), zap.String("provider_status", in.Status), zap.String("status", string(p.Status)))
		return out, nil
	}
	res, err := s.transition(ctx, p, next, domain.PaymentSourceNotify, in.Status, "", in.Raw)
	if err != nil {
		return nil, err
	}
	out.Status = p.Status
	out.Changed = res.changed
	out.OrderConfirmed = res.orderConfirmed
	if !res.changed {
		s.log.Info("[notify] no-op", zap.Uint("payment_id", p.ID), zap.String("status", string(p.Status)), zap.String("reported", string(next)))
	}
	return out, nil
}

type RefundInput struct {
	ExternalReference string
	Amount            *decimal.Decimal // major units; nil refunds the full amount
}

type RefundResult struct {
	PaymentID       uint                 `json:"payment_id"`
	Status          domain.PaymentStatus `json:"status"`
	RefundReference string               `json:"refund_reference,omitempty"`
}

// Refund returns money for a PAID payment. The order status is left as is;
// the finance view reflects the refund.
func (s *PaymentService) Refund(ctx context.Context, caller Caller, in RefundInput) (*RefundResult, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if in.ExternalReference == "" {
		return nil, fmt.Errorf("%w: external_payment_reference is required", ErrInvalidRequest)
	}
	p, err := s.store.Payments.GetByReference(ctx, in.ExternalReference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownPayment
	}
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentPaid {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
	}
	amount := p.AmountMinor
	if in.Amount != nil {
		amount, err = payment.ToMinor(*in.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if amount > p.AmountMinor {
		return nil, fmt.Errorf("%w: refund %s exceeds payment %s", ErrInvalidAmount, payment.FromMinor(amount), payment.FromMinor(p.AmountMinor))
	}

	claimed, err := s.store.Payments.ClaimRefund(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: a refund is already in progress", ErrInvalidState)
	}

	resp, gwErr := s.provider.Refund(ctx, payment.RefundRequest{ExternalReference: in.ExternalReference, AmountMinor: amount})
	if gwErr != nil {
		s.log.Warn("[OCTO] refund failed", zap.Uint("payment_id", p.ID), zap.Error(gwErr))
		if err := s.store.Payments.ReleaseRefund(context.WithoutCancel(ctx), p.ID); err != nil {
			s.log.Error("[OCTO] release refund claim", zap.Uint("payment_id", p.ID), zap.Error(err))
		}
		return nil, gatewayError(gwErr)
	}
	detail := "refund " + resp.RefundReference + " amount " + payment.FromMinor(amount).String()
	if _, err := s.transition(ctx, p, domain.PaymentRefunded, domain.PaymentSourceRefund, resp.Status, detail, ""); err != nil {
		return nil, err
	}
	s.audit(ctx, caller, "payment.refund", p.ID, detail)
	s.log.Info("[OCTO] payment refunded", zap.Uint("payment_id", p.ID), zap.Int64("amount_minor", amount), zap.String("refund_reference", resp.RefundReference))
	return &RefundResult{PaymentID: p.ID, Status: p.Status, RefundReference: resp.RefundReference}, nil
}

type SyncResult struct {
	PaymentID         uint                 `json:"payment_id"`
	OrderID           uint                 `json:"order_id"`
	Status            domain.PaymentStatus `json:"status"`
	ExternalReference string               `json:"external_reference"`
	ProviderStatus    string               `json:"provider_status"`
}

// Sync asks the gateway for the current status of a payment and applies it
// like a callback would. Used when a callback never arrives.
func (s *PaymentService) Sync(ctx context.Context, caller Caller, reference string) (*SyncResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}
	p, err := s.findPayment(ctx, reference, reference)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if !caller.owns(order.UserID) {
		return nil, ErrForbidden
	}
	resp, gwErr := s.provider.Status(ctx, payment.StatusRequest{ShopTransactionID: p.ShopTransactionID, ExternalReference: p.Reference()})
	if gwErr != nil {
		return nil, gatewayError(gwErr)
	}
	if p.ExternalReference == nil && resp.ExternalReference != "" {
		if err := s.store.Payments.SetReferenceIfMissing(ctx, p.ID, resp.ExternalReference); err != nil {
			return nil, err
		}
		p.ExternalReference = &resp.ExternalReference
	}
	if next, ok := domain.MapProviderStatus(resp.ProviderStatus); ok {
		if _, err := s.transition(ctx, p, next, domain.PaymentSourceSync, resp.ProviderStatus, "", ""); err != nil {
			return nil, err
		}
	} else {
		s.log.Warn("[sync] unrecognised provider status", zap.Uint("payment_id", p.ID), zap.String("provider_status", resp.ProviderStatus))
	}
	return &SyncResult{
		PaymentID:         p.ID,
		OrderID:           p.OrderID,
		Status:            p.Status,
		ExternalReference: p.Reference(),
		ProviderStatus:    resp.ProviderStatus,
	}, nil
}

// findPayment looks a payment up by gateway reference, then by our shop
// transaction id.
func (s *PaymentService) findPayment(ctx context.Context, ref, shopTx string) (*models.Payment, error) {
	if ref != "" {
		p, err := s.store.Payments.GetByReference(ctx, ref)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if shopTx != "" {
		p, err := s.store.Payments.GetByShopTransactionID(ctx, shopTx)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrUnknownPayment
}

type transitionResult struct {
	changed        bool
	orderConfirmed bool
}

// transition moves p to next if the state machine allows it from p's stored
// status. On success p.Status is updated, an event is appended and, for PAID,
// the order is confirmed within the same transaction.
func (s *PaymentService) transition(ctx context.Context, p *models.Payment, next domain.PaymentStatus, source, providerStatus, detail, raw string) (transitionResult, error) {
	var res transitionResult
	from := p.Status
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		changed, err := tx.Payments.TransitionStatus(ctx, p.ID, next)
		if err != nil || !changed {
			return err
		}
		res.changed = true
		if raw != "" {
			if err := tx.Payments.SetRaw(ctx, p.ID, payment.Truncate(raw, 4000)); err != nil {
				return err
			}
		}
		if err := tx.Payments.AppendEvent(ctx, &models.PaymentEvent{
			PaymentID:      p.ID,
			FromStatus:     from,
			ToStatus:       next,
			Source:         source,
			ProviderStatus: payment.Truncate(providerStatus, 64),
			Detail:         detail,
		}); err != nil {
			return err
		}
		if next == domain.PaymentPaid {
			confirmed, err := tx.Orders.AdvanceToConfirmed(ctx, p.OrderID)
			if err != nil {
				return err
			}
			res.orderConfirmed = confirmed
		}
		return nil
	})
	if err != nil {
		return transitionResult{}, fmt.Errorf("transition payment %d to %s: %w", p.ID, next, err)
	}
	if !res.changed {
		if cur, err := s.store.Payments.GetByID(ctx, p.ID); err == nil {
			p.Status = cur.Status
		}
		return res, nil
	}
	p.Status = next
	s.log.Info("[payment] status changed",
		zap.Uint("payment_id", p.ID), zap.String("from", string(from)), zap.String("to", string(next)),
		zap.String("source", source), zap.Bool("order_confirmed", res.orderConfirmed))
	if order, err := s.store.Orders.GetByID(ctx, p.OrderID); err == nil {
		s.orderChanged(ctx, order, p)
		if res.orderConfirmed {
			s.clearCart(ctx, order.UserID)
		}
	} else {
		s.log.Warn("[payment] reload order after transition", zap.Uint("order_id", p.OrderID), zap.Error(err))
	}
	return res, nil
}

// clearCart empties the buyer's cart once their order is paid. The payment
// is already committed, so a failure is only logged.
func (s *PaymentService) clearCart(ctx context.Context, userID uint) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.store.Carts.Clear(ctx, userID); err != nil {
		s.log.Warn("[cart] clear after payment failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (s *PaymentService) audit(ctx context.Context, caller Caller, action string, paymentID uint, detail string) {
	uid := caller.UserID
	entry := &models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   "payment",
		ResourceID: strconv.FormatUint(uint64(paymentID), 10),
		IP:         caller.IP,
		UserAgent:  payment.Truncate(caller.UserAgent, 512),
		Metadata:   detail,
	}
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		s.log.Error("[audit] write failed", zap.String("action", action), zap.Error(err))
	}
}

// PaymentHistory is the admin view of one payment: its status trail and the
// privileged actions taken on it.
type PaymentHistory struct {
	Payment *models.Payment       `json:"payment"`
	Events  []models.PaymentEvent `json:"events"`
	Audit   []models.AuditLog     `json:"audit"`
}

func (s *PaymentService) History(ctx context.Context, caller Caller, paymentID uint) (*PaymentHistory, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	p, err := s.store.Payments.GetByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownPayment
	}
	if err != nil {
		return nil, err
	}
	events, err := s.store.Payments.Events(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	audit, err := s.store.Audit.ListByResource(ctx, "payment", strconv.FormatUint(uint64(p.ID), 10))
	if err != nil {
		return nil, err
	}
	return &PaymentHistory{Payment: p, Events: events, Audit: audit}, nil
}
