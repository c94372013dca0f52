package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-payledger/core"
	"github.com/stripe/stripe-go/v82"
)

// DecodePaymentSnapshot extracts the payment fields kept on a transaction from
// the event's data.object. Unknown shapes keep only the raw payload.
func DecodePaymentSnapshot(eventType string, payload json.RawMessage) core.PaymentSnapshot {
	snapshot := core.PaymentSnapshot{}
	if len(payload) == 0 {
		return snapshot
	}
	snapshot.Raw = append(json.RawMessage(nil), payload...)

	switch {
	case strings.HasPrefix(eventType, "checkout.session."):
		var session stripe.CheckoutSession
		if err := json.Unmarshal(payload, &session); err != nil {
			return snapshot
		}
		snapshot.SessionID = session.ID
		snapshot.AmountMinor = session.AmountTotal
		snapshot.Currency = strings.ToLower(string(session.Currency))
		snapshot.ClientReferenceID = session.ClientReferenceID
		if session.Customer != nil {
			snapshot.CustomerID = session.Customer.ID
		}
	case strings.HasPrefix(eventType, "invoice."):
		var invoice stripe.Invoice
		if err := json.Unmarshal(payload, &invoice); err != nil {
			return snapshot
		}
		snapshot.SessionID = invoice.ID
		snapshot.AmountMinor = invoice.AmountPaid
		snapshot.Currency = strings.ToLower(string(invoice.Currency))
		if invoice.Customer != nil {
			snapshot.CustomerID = invoice.Customer.ID
		}
	default:
		var object struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &object); err == nil {
			snapshot.SessionID = object.ID
		}
	}
	return snapshot
}
