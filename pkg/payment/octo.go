package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OctoSettings holds merchant credentials and defaults for the OCTO API.
type OctoSettings struct {
	BaseURL     string
	ShopID      string
	Secret      string
	ReturnURL   string
	NotifyURL   string
	Language    string
	Currency    string
	AutoCapture bool
	Test        bool
	StatusPath  string
	Timeout     time.Duration
	USDRate     float64 // UZS per USD; refunds below 1 USD are rejected locally when set
	ExtraParams map[string]any
}

// OctoProvider implements one-stage (auto capture) payments via the OCTO API.
type OctoProvider struct {
	settings OctoSettings
	client   *http.Client
	log      *zap.Logger
}

func NewOctoProvider(s OctoSettings, log *zap.Logger) *OctoProvider {
	if s.BaseURL == "" {
		s.BaseURL = "https://secure.octo.uz"
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.StatusPath == "" {
		s.StatusPath = "/check_status"
	}
	if s.Currency == "" {
		s.Currency = "UZS"
	}
	if s.Timeout <= 0 {
		s.Timeout = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OctoProvider{
		settings: s,
		client:   &http.Client{Timeout: s.Timeout},
		log:      log,
	}
}

// octoResponse is the common OCTO envelope: error == 0 means success.
type octoResponse struct {
	fields map[string]any
	raw    string
}

func (r *octoResponse) errorCode() (int, bool) {
	v, ok := r.fields["error"]
	if !ok {
		return -1, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return -1, false
}

func (r *octoResponse) ok() bool {
	code, found := r.errorCode()
	return found && code == 0
}

func (r *octoResponse) errMessage() string {
	for _, k := range []string{"errMessage", "errorMessage", "message"} {
		if s, ok := r.fields[k].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown OCTO error"
}

func (r *octoResponse) data() map[string]any {
	d, _ := r.fields["data"].(map[string]any)
	return d
}

// str returns the first non-empty string value for key at top level or under data.
func (r *octoResponse) str(keys ...string) string {
	for _, src := range []map[string]any{r.fields, r.data()} {
		for _, k := range keys {
			if s, ok := src[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// paymentUUID extracts the gateway payment id from OCTO's inconsistent response shapes.
func (r *octoResponse) paymentUUID() string {
	if s := r.str("octo_payment_UUID", "octo_payment_uuid", "payment_uuid"); s != "" {
		return s
	}
	for _, src := range []map[string]any{r.fields, r.data()} {
		for k, v := range src {
			s, ok := v.(string)
			if !ok || len(s) < 8 {
				continue
			}
			kl := strings.ToLower(k)
			if strings.Contains(kl, "payment") && strings.Contains(kl, "uuid") {
				return s
			}
		}
	}
	return ""
}

func (r *octoResponse) providerError(kind error) error {
	code, _ := r.errorCode()
	return &ProviderError{Kind: kind, Code: code, Message: r.errMessage()}
}

func (p *OctoProvider) shopID() any {
	if n, err := strconv.ParseInt(p.settings.ShopID, 10, 64); err == nil {
		return n
	}
	return p.settings.ShopID
}

func (p *OctoProvider) post(ctx context.Context, path string, payload map[string]any) (*octoResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrInvalidRequest, err)
	}
	url := p.settings.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.log.Info("[OCTO] request", zap.String("url", url))
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}
	p.log.Info("[OCTO] response", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(respBody)))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ProviderError{Kind: ErrNotFound, Code: resp.StatusCode, Message: Truncate(string(respBody), 256)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	out := &octoResponse{raw: Truncate(string(respBody), 3900)}
	if err := json.Unmarshal(respBody, &out.fields); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrGatewayUnavailable, err)
	}
	return out, nil
}

func (p *OctoProvider) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: total_sum must be positive", ErrInvalidRequest)
	}
	returnURL := firstNonEmpty(req.ReturnURL, p.settings.ReturnURL)
	notifyURL := firstNonEmpty(req.NotifyURL, p.settings.NotifyURL)
	var missing []string
	if p.settings.ShopID == "" {
		missing = append(missing, "shop_id")
	}
	if p.settings.Secret == "" {
		missing = append(missing, "secret")
	}
	if returnURL == "" {
		missing = append(missing, "return_url")
	}
	if notifyURL == "" {
		missing = append(missing, "notify_url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing settings: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	shopTx := req.ShopTransactionID
	if shopTx == "" {
		shopTx = uuid.NewString()
	}
	currency := firstNonEmpty(req.Currency, p.settings.Currency)

	payload := map[string]any{
		"octo_shop_id":        p.shopID(),
		"octo_secret":         p.settings.Secret,
		"shop_transaction_id": shopTx,
		"auto_capture":        p.settings.AutoCapture,
		"init_time":           time.Now().Format("2006-01-02 15:04:05"),
		"test":                p.settings.Test,
		"total_sum":           FromMinor(req.AmountMinor).InexactFloat64(),
		"currency":            currency,
		"description":         req.Description,
		"return_url":          returnURL,
		"notify_url":          notifyURL,
		"language":            p.settings.Language,
	}
	for k, v := range p.settings.ExtraParams {
		payload[k] = v
	}
	for k, v := range req.Options {
		payload[k] = v
	}

	resp, err := p.post(ctx, "/prepare_payment", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		p.log.Warn("[OCTO] prepare_payment rejected", zap.String("shop_transaction_id", shopTx), zap.String("err", resp.errMessage()))
		return nil, resp.providerError(ErrInvalidRequest)
	}
	out := &CreateResponse{
		ExternalReference: resp.paymentUUID(),
		RedirectURL:       resp.str("octo_pay_url"),
		Raw:               resp.raw,
	}
	if out.RedirectURL == "" {
		return nil, fmt.Errorf("%w: response has no octo_pay_url", ErrGatewayUnavailable)
	}
	if out.ExternalReference == "" {
		p.log.Warn("[OCTO] response missing payment UUID", zap.String("shop_transaction_id", shopTx))
	}
	return out, nil
}

func (p *OctoProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if req.ExternalReference == "" {
		return nil, fmt.Errorf("%w: payment UUID required", ErrInvalidRequest)
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if p.settings.USDRate > 0 {
		minMinor := decimal.NewFromFloat(p.settings.USDRate).Round(0).Shift(minorExp).IntPart()
		if req.AmountMinor < minMinor {
			return nil, fmt.Errorf("%w: minimum refund is %s %s (1 USD)", ErrInvalidAmount, FromMinor(minMinor).String(), p.settings.Currency)
		}
	}
	if p.settings.ShopID == "" || p.settings.Secret == "" {
		return nil, fmt.Errorf("%w: missing settings: shop_id, secret", ErrInvalidRequest)
	}
	refundID := uuid.NewString()
	payload := map[string]any{
		"octo_shop_id":      p.shopID(),
		"shop_refund_id":    refundID,
		"octo_secret":       p.settings.Secret,
		"octo_payment_UUID": req.ExternalReference,
		"amount":            FromMinor(req.AmountMinor).InexactFloat64(),
	}
	resp, err := p.post(ctx, "/refund", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		p.log.Warn("[OCTO] refund rejected", zap.String("octo_payment_UUID", req.ExternalReference), zap.String("err", resp.errMessage()))
		return nil, resp.providerError(ErrInvalidRequest)
	}
	return &RefundResponse{
		RefundReference: firstNonEmpty(resp.str("refund_id", "octo_refund_UUID"), refundID),
		Status:          resp.str("status"),
		Raw:             resp.raw,
	}, nil
}

func (p *OctoProvider) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	if req.ShopTransactionID == "" && req.ExternalReference == "" {
		return nil, fmt.Errorf("%w: reference required", ErrInvalidRequest)
	}
	payload := map[string]any{
		"octo_shop_id": p.shopID(),
		"octo_secret":  p.settings.Secret,
	}
	if req.ShopTransactionID != "" {
		payload["shop_transaction_id"] = req.ShopTransactionID
	}
	if req.ExternalReference != "" {
		payload["octo_payment_UUID"] = req.ExternalReference
	}
	resp, err := p.post(ctx, p.settings.StatusPath, payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.providerError(ErrInvalidRequest)
	}
	return &StatusResponse{
		ProviderStatus:    resp.str("status"),
		ExternalReference: firstNonEmpty(resp.paymentUUID(), req.ExternalReference),
		Raw:               resp.raw,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsUnavailable reports whether err means the gateway could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
