package domain

import "strings"

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "CREATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// providerStatuses maps OCTO status strings (lower-cased) to local statuses.
var providerStatuses = map[string]PaymentStatus{
	"paid":                PaymentPaid,
	"captured":            PaymentPaid,
	"completed":           PaymentPaid,
	"succeeded":           PaymentPaid,
	"success":             PaymentPaid,
	"paid_and_captured":   PaymentPaid,
	"failed":              PaymentFailed,
	"declined":            PaymentFailed,
	"error":               PaymentFailed,
	"cancelled":           PaymentCancelled,
	"canceled":            PaymentCancelled,
	"refunded":            PaymentRefunded,
	"refund":              PaymentRefunded,
	"created":             PaymentPending,
	"pending":             PaymentPending,
	"wait_user_action":    PaymentPending,
	"waiting_for_capture": PaymentPending,
}

// MapProviderStatus translates a provider status string. ok is false for
// strings outside the table; callers keep the current status in that case.
func MapProviderStatus(s string) (PaymentStatus, bool) {
	st, ok := providerStatuses[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// predecessors lists, per target, the statuses a payment may move from.
// Anything not listed is a no-op: terminal states never regress, and the only
// edge out of a terminal state is PAID -> REFUNDED.
var predecessors = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCreated},
	PaymentPaid:      {PaymentCreated, PaymentPending},
	PaymentFailed:    {PaymentCreated, PaymentPending},
	PaymentCancelled: {PaymentCreated, PaymentPending},
	PaymentRefunded:  {PaymentPaid},
}

// Predecessors returns the statuses from which next is reachable.
func Predecessors(next PaymentStatus) []PaymentStatus {
	return predecessors[next]
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, p := range predecessors[next] {
		if p == s {
			return true
		}
	}
	return false
}
