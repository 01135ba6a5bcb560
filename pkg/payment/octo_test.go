package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	reqs []map[string]any
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.reqs...)
}

func newOctoTestServer(t *testing.T, handler func(path string, body map[string]any) (int, any)) (*OctoProvider, *recorder) {
	t.Helper()
	seen := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["_path"] = r.URL.Path
		seen.mu.Lock()
		seen.reqs = append(seen.reqs, body)
		seen.mu.Unlock()
		code, resp := handler(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		switch v := resp.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		default:
			_ = json.NewEncoder(w).Encode(v)
		}
	}))
	t.Cleanup(srv.Close)
	p := NewOctoProvider(OctoSettings{
		BaseURL:     srv.URL,
		ShopID:      "1234",
		Secret:      "secret",
		ReturnURL:   "https://shop.example/return",
		NotifyURL:   "https://shop.example/api/v1/octo/notify",
		Language:    "uz",
		AutoCapture: true,
		Test:        true,
		ExtraParams: map[string]any{"ttl": 15},
	}, nil)
	return p, seen
}

func TestOctoCreatePayment(t *testing.T) {
	p, seen := newOctoTestServer(t, func(path string, body map[string]any) (int, any) {
		return 200, map[string]any{
			"error": 0,
			"data": map[string]any{
				"octo_payment_UUID": "7f9a2c1e-0000-4000-8000-000000000001",
				"octo_pay_url":      "https://pay.octo.uz/7f9a",
				"status":            "created",
			},
		}
	})

	resp, err := p.CreatePayment(context.Background(), CreateRequest{
		OrderID:           7,
		ShopTransactionID: "tx-1",
		AmountMinor:       5000000,
		Description:       "Order SL-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "7f9a2c1e-0000-4000-8000-000000000001", resp.ExternalReference)
	assert.Equal(t, "https://pay.octo.uz/7f9a", resp.RedirectURL)

	reqs := seen.all()
	require.Len(t, reqs, 1)
	sent := reqs[0]
	assert.Equal(t, "/prepare_payment", sent["_path"])
	assert.Equal(t, float64(1234), sent["octo_shop_id"])
	assert.Equal(t, "tx-1", sent["shop_transaction_id"])
	assert.Equal(t, float64(50000), sent["total_sum"])
	assert.Equal(t, "UZS", sent["currency"])
	assert.Equal(t, true, sent["auto_capture"])
	assert.Equal(t, float64(15), sent["ttl"])
	assert.Equal(t, "https://shop.example/api/v1/octo/notify", sent["notify_url"])
}

func TestOctoCreatePaymentRejected(t *testing.T) {
	p, _ := newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 200, map[string]any{"error": 2, "errMessage": "Wrong secret"}
	})
	_, err := p.CreatePayment(context.Background(), CreateRequest{AmountMinor: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Code)
	assert.Equal(t, "Wrong secret", pe.Message)
}

func TestOctoCreatePaymentUnavailable(t *testing.T) {
	p, _ := newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 503, "upstream down"
	})
	_, err := p.CreatePayment(context.Background(), CreateRequest{AmountMinor: 100})
	assert.True(t, IsUnavailable(err))

	p, _ = newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 200, "<html>not json</html>"
	})
	_, err = p.CreatePayment(context.Background(), CreateRequest{AmountMinor: 100})
	assert.True(t, IsUnavailable(err))
}

func TestOctoCreatePaymentValidation(t *testing.T) {
	p := NewOctoProvider(OctoSettings{ShopID: "1"}, nil)
	_, err := p.CreatePayment(context.Background(), CreateRequest{AmountMinor: 0})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = p.CreatePayment(context.Background(), CreateRequest{AmountMinor: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Contains(t, err.Error(), "secret")
}

func TestOctoPaymentUUIDHeuristic(t *testing.T) {
	r := &octoResponse{fields: map[string]any{
		"error": float64(0),
		"data":  map[string]any{"octoPaymentUuid": "abcdef123456"},
	}}
	assert.Equal(t, "abcdef123456", r.paymentUUID())

	r = &octoResponse{fields: map[string]any{"payment_uuid_short": "abc"}}
	assert.Equal(t, "", r.paymentUUID())
}

func TestOctoRefund(t *testing.T) {
	p, seen := newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 200, map[string]any{"error": 0, "data": map[string]any{"refund_id": "r-1", "status": "succeeded"}}
	})
	resp, err := p.Refund(context.Background(), RefundRequest{ExternalReference: "uuid-1", AmountMinor: 5000000})
	require.NoError(t, err)
	assert.Equal(t, "r-1", resp.RefundReference)
	assert.Equal(t, "succeeded", resp.Status)

	sent := seen.all()[0]
	assert.Equal(t, "/refund", sent["_path"])
	assert.Equal(t, "uuid-1", sent["octo_payment_UUID"])
	assert.Equal(t, float64(50000), sent["amount"])
	assert.NotEmpty(t, sent["shop_refund_id"])
}

func TestOctoRefundGuards(t *testing.T) {
	p, seen := newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 404, map[string]any{"error": 404}
	})
	_, err := p.Refund(context.Background(), RefundRequest{ExternalReference: "uuid-1", AmountMinor: 0})
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = p.Refund(context.Background(), RefundRequest{AmountMinor: 100})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Empty(t, seen.all())

	_, err = p.Refund(context.Background(), RefundRequest{ExternalReference: "uuid-1", AmountMinor: 100})
	assert.True(t, errors.Is(err, ErrNotFound))

	p.settings.USDRate = 12650
	_, err = p.Refund(context.Background(), RefundRequest{ExternalReference: "uuid-1", AmountMinor: 1264999})
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestOctoStatus(t *testing.T) {
	p, seen := newOctoTestServer(t, func(string, map[string]any) (int, any) {
		return 200, map[string]any{"error": 0, "data": map[string]any{"status": "succeeded", "octo_payment_UUID": "uuid-9"}}
	})
	p.settings.StatusPath = "/check_status"
	resp, err := p.Status(context.Background(), StatusRequest{ShopTransactionID: "tx-9"})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.ProviderStatus)
	assert.Equal(t, "uuid-9", resp.ExternalReference)
	assert.Equal(t, "/check_status", seen.all()[0]["_path"])

	_, err = p.Status(context.Background(), StatusRequest{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
