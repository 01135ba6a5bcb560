package service

import (
	"errors"
	"fmt"

	"slippers/internal/domain"
	"slippers/pkg/payment"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnknownPayment     = errors.New("unknown payment")
	ErrInvalidState       = errors.New("invalid state")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("forbidden")
	ErrSlipperNotFound    = errors.New("slipper not found")
	ErrCartItemNotFound   = errors.New("cart item not found")
)

// gatewayError translates pkg/payment errors into service errors, keeping the
// provider's message for the client.
func gatewayError(err error) error {
	switch {
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, payment.ErrInvalidAmount):
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	case errors.Is(err, payment.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrUnknownPayment, err)
	case errors.Is(err, payment.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return err
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID    uint
	Role      string
	IP        string
	UserAgent string
}

func (c Caller) IsAdmin() bool { return c.Role == domain.RoleAdmin }

func (c Caller) owns(userID uint) bool {
	return c.IsAdmin() || (c.UserID != 0 && c.UserID == userID)
}
