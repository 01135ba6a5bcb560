package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	Name             string
	MaxRequests      uint32        // trial requests allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open -> half-open delay
	FailureThreshold uint32        // consecutive unavailability errors that open the breaker
}

// BreakerProvider guards a Provider with a circuit breaker. Only
// ErrGatewayUnavailable counts as a failure; provider rejections do not.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerProvider(next Provider, s BreakerSettings, log *zap.Logger) *BreakerProvider {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	name := s.Name
	if name == "" {
		name = "octo"
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrGatewayUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("[OCTO] circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &BreakerProvider{next: next, cb: cb}
}

func (b *BreakerProvider) execute(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return out, err
}

func (b *BreakerProvider) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	out, err := b.execute(func() (any, error) { return b.next.CreatePayment(ctx, req) })
	if err != nil {
		return nil, err
	}
	return out.(*CreateResponse), nil
}

func (b *BreakerProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	out, err := b.execute(func() (any, error) { return b.next.Refund(ctx, req) })
	if err != nil {
		return nil, err
	}
	return out.(*RefundResponse), nil
}

func (b *BreakerProvider) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	out, err := b.execute(func() (any, error) { return b.next.Status(ctx, req) })
	if err != nil {
		return nil, err
	}
	return out.(*StatusResponse), nil
}
