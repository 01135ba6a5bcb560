package payment

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Notification is a decoded OCTO notify callback.
type Notification struct {
	ExternalReference string
	ShopTransactionID string
	Status            string
	Raw               string
}

// ParseNotification decodes a callback body sent as JSON or as a form.
// It fails with ErrInvalidRequest when the body cannot be decoded or carries
// neither the gateway reference nor the shop transaction id.
func ParseNotification(body []byte, contentType string) (*Notification, error) {
	r := &octoResponse{raw: Truncate(string(body), 3900)}
	if strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: form: %v", ErrInvalidRequest, err)
		}
		r.fields = make(map[string]any, len(values))
		for k := range values {
			r.fields[k] = values.Get(k)
		}
	} else if err := json.Unmarshal(body, &r.fields); err != nil || r.fields == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrInvalidRequest)
	}
	n := &Notification{
		ExternalReference: firstNonEmpty(r.paymentUUID(), r.str("external_reference", "reference")),
		ShopTransactionID: r.str("shop_transaction_id"),
		Status:            r.str("status", "payment_status"),
		Raw:               r.raw,
	}
	if n.ExternalReference == "" && n.ShopTransactionID == "" {
		return nil, fmt.Errorf("%w: no payment reference in callback", ErrInvalidRequest)
	}
	return n, nil
}
