package command

import (
	"strings"

	"github.com/goliatone/go-payledger/webhooks"
)

const (
	TypeProcessWebhook = "payledger.command.webhook.process"
	TypeReplayFailure  = "payledger.command.failure.replay"
	TypeResolveFailure = "payledger.command.failure.resolve"
)

type ProcessWebhookMessage struct {
	Request webhooks.Request
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Request.MerchantID) == "" {
		return commandValidationError("merchant_id", "merchant id is required")
	}
	if strings.TrimSpace(m.Request.ProductID) == "" {
		return commandValidationError("product_id", "product id is required")
	}
	return nil
}

// ReplayFailureMessage re-applies a recorded credit failure. Replay goes
// through the ledger dedup, so replaying a failure whose event was credited
// in the meantime marks it resolved without a second credit.
type ReplayFailureMessage struct {
	FailureID string
}

func (ReplayFailureMessage) Type() string { return TypeReplayFailure }

func (m ReplayFailureMessage) Validate() error {
	if strings.TrimSpace(m.FailureID) == "" {
		return commandValidationError("failure_id", "failure id is required")
	}
	return nil
}

type ResolveFailureMessage struct {
	FailureID string
}

func (ResolveFailureMessage) Type() string { return TypeResolveFailure }

func (m ResolveFailureMessage) Validate() error {
	if strings.TrimSpace(m.FailureID) == "" {
		return commandValidationError("failure_id", "failure id is required")
	}
	return nil
}
