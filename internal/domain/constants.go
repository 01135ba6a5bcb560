package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

// FinancePaidRefunded is the order listing filter value that restricts results
// to orders whose latest payment is PAID or REFUNDED.
const FinancePaidRefunded = "paid_refunded"

const (
	PaymentSourceCreate = "create"
	PaymentSourceNotify = "notify"
	PaymentSourceRefund = "refund"
	PaymentSourceSync   = "sync"
)

const CurrencyUZS = "UZS"

const (
	EventPaymentStatus = "payment.status"
	EventOrderStatus   = "order.status"
)

// OrderEvent is pushed to connected clients after an order or one of its
// payments changes state.
type OrderEvent struct {
	Type          string        `json:"type"`
	OrderID       uint          `json:"order_id"`
	OrderStatus   string        `json:"order_status"`
	PaymentID     uint          `json:"payment_id,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
}
