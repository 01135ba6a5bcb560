package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidRequest     = errors.New("invalid payment request")
	ErrNotFound           = errors.New("payment not found at gateway")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// ProviderError carries the gateway's own error code and message. It unwraps
// to one of the sentinel errors above.
type ProviderError struct {
	Kind    error
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: code=%d %s", e.Kind, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Kind }

type CreateRequest struct {
	OrderID           uint
	ShopTransactionID string // our id, echoed back in notify callbacks
	AmountMinor       int64
	Currency          string
	Description       string
	ReturnURL         string // optional; provider default when empty
	NotifyURL         string // optional; provider default when empty
	Options           map[string]any
}

type CreateResponse struct {
	ExternalReference string
	RedirectURL       string
	Raw               string
}

type RefundRequest struct {
	ExternalReference string
	AmountMinor       int64
}

type RefundResponse struct {
	RefundReference string
	Status          string
	Raw             string
}

type StatusRequest struct {
	ShopTransactionID string
	ExternalReference string
}

type StatusResponse struct {
	ProviderStatus    string
	ExternalReference string
	Raw               string
}

// Provider is an outbound payment gateway client. Implementations never touch
// local state.
type Provider interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)
}
