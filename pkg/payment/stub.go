package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StubProvider is an in-process gateway for development. Payments stay
// "created" until SetStatus is called.
type StubProvider struct {
	PayURL string

	mu       sync.Mutex
	statuses map[string]string // shop transaction id or external reference -> provider status
}

func NewStubProvider(payURL string) *StubProvider {
	if payURL == "" {
		payURL = "http://localhost/stub-pay"
	}
	return &StubProvider{PayURL: payURL, statuses: make(map[string]string)}
}

func (s *StubProvider) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: total_sum must be positive", ErrInvalidRequest)
	}
	ref := "stub_" + uuid.NewString()
	s.mu.Lock()
	s.statuses[ref] = "created"
	if req.ShopTransactionID != "" {
		s.statuses[req.ShopTransactionID] = "created"
	}
	s.mu.Unlock()
	return &CreateResponse{
		ExternalReference: ref,
		RedirectURL:       s.PayURL + "/" + ref,
	}, nil
}

func (s *StubProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statuses[req.ExternalReference]; !ok {
		return nil, &ProviderError{Kind: ErrNotFound, Code: 404, Message: "unknown payment"}
	}
	s.statuses[req.ExternalReference] = "refunded"
	return &RefundResponse{RefundReference: uuid.NewString(), Status: "refunded"}, nil
}

func (s *StubProvider) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{req.ExternalReference, req.ShopTransactionID} {
		if st, ok := s.statuses[key]; ok && key != "" {
			return &StatusResponse{ProviderStatus: st, ExternalReference: req.ExternalReference}, nil
		}
	}
	return nil, &ProviderError{Kind: ErrNotFound, Code: 404, Message: "unknown payment"}
}

// SetStatus simulates the provider moving a payment to status.
func (s *StubProvider) SetStatus(reference, status string) {
	s.mu.Lock()
	s.statuses[reference] = status
	s.mu.Unlock()
}
