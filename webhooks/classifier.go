package webhooks

import (
	"sort"
	"strings"
)

type Action string

const (
	ActionCredit Action = "credit"
	ActionIgnore Action = "ignore"
)

// DefaultCreditEventTypes are the provider events that grant purchased
// tokens. Refunds, disputes and subscription lifecycle events are ignored.
var DefaultCreditEventTypes = []string{
	"checkout.session.completed",
	"checkout.session.async_payment_succeeded",
	"invoice.payment_succeeded",
}

// Classifier is a static allow-list of credit event types.
type Classifier struct {
	credit map[string]struct{}
}

func NewClassifier(extra ...string) *Classifier {
	credit := make(map[string]struct{}, len(DefaultCreditEventTypes)+len(extra))
	for _, eventType := range DefaultCreditEventTypes {
		credit[eventType] = struct{}{}
	}
	for _, eventType := range extra {
		if eventType = normalizeEventType(eventType); eventType != "" {
			credit[eventType] = struct{}{}
		}
	}
	return &Classifier{credit: credit}
}

func (c *Classifier) Classify(eventType string) Action {
	if c == nil {
		return ActionIgnore
	}
	if _, ok := c.credit[normalizeEventType(eventType)]; ok {
		return ActionCredit
	}
	return ActionIgnore
}

func (c *Classifier) CreditEventTypes() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.credit))
	for eventType := range c.credit {
		out = append(out, eventType)
	}
	sort.Strings(out)
	return out
}

func normalizeEventType(eventType string) string {
	return strings.ToLower(strings.TrimSpace(eventType))
}
