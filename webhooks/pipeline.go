package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/identity"
	"github.com/goliatone/go-payledger/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateReceived      State = "received"
	StateAuthenticated State = "authenticated"
	StateConfigured    State = "configured"
	StateClassified    State = "classified"
	StateCredited      State = "credited"
	StateAcknowledged  State = "acknowledged"
	StateTerminal      State = "terminal"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, assertion string) (identity.Identity, error)
}

type EventClassifier interface {
	Classify(eventType string) Action
}

type CreditApplier interface {
	ApplyCredit(ctx context.Context, req ledger.CreditRequest) (ledger.CreditResult, error)
}

type Request struct {
	MerchantID string
	ProductID  string
	Headers    http.Header
	Body       []byte
}

// Outcome is the full trace of one processed request.
type Outcome struct {
	States     []State
	StatusCode int
	Body       ResponseBody
	MerchantID string
	ProductID  string
	EventID    string
	EventType  string
	UserID     string
	Action     Action
	Amount     decimal.Decimal
	Duplicate  bool
	Err        error
}

func (o Outcome) Reached(state State) bool {
	for _, visited := range o.States {
		if visited == state {
			return true
		}
	}
	return false
}

type Pipeline struct {
	Verifier          EventVerifier
	Identity          IdentityResolver
	Catalog           core.ProductCatalog
	Classifier        EventClassifier
	Ledger            CreditApplier
	Failures          core.FailureSink
	UnsupportedStatus int
	Observer          core.Observer
	Now               func() time.Time
}

func NewPipeline(
	verifier EventVerifier,
	resolver IdentityResolver,
	catalog core.ProductCatalog,
	classifier EventClassifier,
	credits CreditApplier,
) *Pipeline {
	return &Pipeline{
		Verifier:          verifier,
		Identity:          resolver,
		Catalog:           catalog,
		Classifier:        classifier,
		Ledger:            credits,
		UnsupportedStatus: http.StatusUnprocessableEntity,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Process never returns an error; every failure is folded into the outcome.
func (p *Pipeline) Process(ctx context.Context, req Request) (outcome Outcome) {
	startedAt := time.Now()
	outcome = Outcome{
		States:     []State{StateReceived},
		MerchantID: strings.TrimSpace(req.MerchantID),
		ProductID:  strings.TrimSpace(req.ProductID),
	}
	var envelope core.EventEnvelope
	var snapshot core.PaymentSnapshot

	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("webhooks: panic while processing event: %v", recovered)
			if outcome.Reached(StateAuthenticated) {
				outcome = p.processingFailed(ctx, outcome, envelope, snapshot, panicErr)
			} else {
				outcome.StatusCode = http.StatusInternalServerError
				outcome.Body = ResponseBody{Detail: http.StatusText(http.StatusInternalServerError)}
				outcome.Err = panicErr
			}
		}
		outcome.States = append(outcome.States, StateTerminal)
		p.observe(ctx, startedAt, outcome)
	}()

	if p == nil || p.Verifier == nil || p.Identity == nil || p.Catalog == nil || p.Classifier == nil || p.Ledger == nil {
		return p.reject(outcome, goerrors.New("webhook pipeline is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal))
	}

	verified, err := p.Verifier.Verify(req.Body, req.Headers)
	if err != nil {
		return p.reject(outcome, err)
	}
	envelope = verified
	outcome.EventID = envelope.EventID
	outcome.EventType = envelope.EventType

	resolved, err := p.Identity.Resolve(ctx, envelope.AssertionToken)
	if err != nil {
		return p.reject(outcome, err)
	}
	envelope.ActingUserID = resolved.UserID
	outcome.UserID = resolved.UserID
	outcome.States = append(outcome.States, StateAuthenticated)

	product, err := p.Catalog.Lookup(outcome.MerchantID, outcome.ProductID)
	if err != nil {
		if errors.Is(err, core.ErrConfigNotFound) || errors.Is(err, core.ErrMisconfiguredProduct) {
			p.Observer.LogWarn(ctx, "webhook product configuration rejected", map[string]any{
				"merchant_id": outcome.MerchantID,
				"product_id":  outcome.ProductID,
				"event_id":    outcome.EventID,
				"error":       err.Error(),
			})
			return p.reject(outcome, err)
		}
		return p.processingFailed(ctx, outcome, envelope, snapshot, err)
	}
	outcome.States = append(outcome.States, StateConfigured)

	outcome.Action = p.Classifier.Classify(envelope.EventType)
	outcome.States = append(outcome.States, StateClassified)
	if outcome.Action != ActionCredit {
		outcome.States = append(outcome.States, StateAcknowledged)
		outcome.StatusCode, outcome.Body = AcknowledgedResponse()
		return outcome
	}

	amount, ok := product.CreditAmount()
	if !ok {
		return p.reject(outcome, &core.UnsupportedProductError{
			MerchantID: product.MerchantID,
			ProductID:  product.ProductID,
			Type:       product.Type(),
			Status:     p.UnsupportedStatus,
		})
	}
	if !amount.IsPositive() {
		return p.reject(outcome, &core.MisconfiguredProductError{
			MerchantID: product.MerchantID,
			ProductID:  product.ProductID,
			Reason:     "credit amount is missing",
		})
	}
	outcome.Amount = amount

	snapshot = DecodePaymentSnapshot(envelope.EventType, envelope.Payload)
	result, err := p.Ledger.ApplyCredit(ctx, ledger.CreditRequest{
		UserID:     resolved.UserID,
		EventID:    envelope.EventID,
		EventType:  envelope.EventType,
		MerchantID: product.MerchantID,
		ProductID:  product.ProductID,
		Amount:     amount,
		OccurredAt: envelope.Created,
		Snapshot:   snapshot,
	})
	if err != nil {
		return p.processingFailed(ctx, outcome, envelope, snapshot, err)
	}

	outcome.Duplicate = result.Duplicate
	outcome.States = append(outcome.States, StateCredited)
	outcome.StatusCode, outcome.Body = ProcessedResponse(result.Duplicate)
	return outcome
}

func (p *Pipeline) reject(outcome Outcome, err error) Outcome {
	outcome.Err = err
	outcome.StatusCode, outcome.Body = ResponseForError(err, p.unsupportedStatus())
	return outcome
}

// processingFailed acknowledges an authenticated request whose credit could
// not be applied and records it for operator replay.
func (p *Pipeline) processingFailed(
	ctx context.Context,
	outcome Outcome,
	envelope core.EventEnvelope,
	snapshot core.PaymentSnapshot,
	err error,
) Outcome {
	outcome.Err = err
	outcome.States = append(outcome.States, StateAcknowledged)
	outcome.StatusCode, outcome.Body = ProcessingFailedResponse()

	fields := map[string]any{
		"event_id":    outcome.EventID,
		"event_type":  outcome.EventType,
		"user_id":     outcome.UserID,
		"merchant_id": outcome.MerchantID,
		"product_id":  outcome.ProductID,
		"amount":      outcome.Amount.String(),
		"error":       err.Error(),
	}
	p.Observer.LogError(ctx, "webhook credit not applied", fields)
	p.Observer.IncCounter(ctx, "webhook.credit_failures", 1, map[string]string{
		"merchant_id": outcome.MerchantID,
		"product_id":  outcome.ProductID,
		"event_type":  outcome.EventType,
	})

	if recordErr := p.recordFailure(ctx, outcome, envelope, snapshot, err); recordErr != nil {
		fields["record_error"] = recordErr.Error()
		p.Observer.LogError(ctx, "webhook credit failure not recorded", fields)
	}
	return outcome
}

func (p *Pipeline) recordFailure(
	ctx context.Context,
	outcome Outcome,
	envelope core.EventEnvelope,
	snapshot core.PaymentSnapshot,
	cause error,
) (err error) {
	if p == nil || p.Failures == nil || outcome.EventID == "" || outcome.UserID == "" {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("webhooks: failure sink panicked: %v", recovered)
		}
	}()
	now := p.now()
	occurredAt := envelope.Created
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if len(snapshot.Raw) == 0 && len(envelope.Payload) > 0 {
		snapshot = DecodePaymentSnapshot(envelope.EventType, envelope.Payload)
	}
	return p.Failures.RecordFailure(ctx, core.CreditFailure{
		ID:         uuid.NewString(),
		EventID:    outcome.EventID,
		EventType:  outcome.EventType,
		UserID:     outcome.UserID,
		MerchantID: outcome.MerchantID,
		ProductID:  outcome.ProductID,
		Amount:     outcome.Amount,
		OccurredAt: occurredAt,
		Snapshot:   snapshot,
		Error:      cause.Error(),
		Status:     core.FailureStatusPending,
		CreatedAt:  now,
	})
}

func (p *Pipeline) observe(ctx context.Context, startedAt time.Time, outcome Outcome) {
	if p == nil {
		return
	}
	fields := map[string]any{
		"merchant_id": outcome.MerchantID,
		"product_id":  outcome.ProductID,
		"event_id":    outcome.EventID,
		"event_type":  outcome.EventType,
		"user_id":     outcome.UserID,
		"status_code": outcome.StatusCode,
		"outcome":     outcomeLabel(outcome),
	}
	if outcome.Action == ActionCredit {
		fields["amount"] = outcome.Amount.String()
	}
	p.Observer.ObserveOperation(ctx, startedAt, "webhook", outcome.Err, fields)
}

func outcomeLabel(outcome Outcome) string {
	switch {
	case outcome.Reached(StateCredited) && outcome.Duplicate:
		return "duplicate"
	case outcome.Reached(StateCredited):
		return "credited"
	case outcome.Reached(StateAcknowledged) && outcome.Err != nil:
		return "processing_failed"
	case outcome.Reached(StateAcknowledged):
		return "ignored"
	case errors.Is(outcome.Err, core.ErrConfigNotFound):
		return "not_found"
	case errors.Is(outcome.Err, core.ErrUnsupportedProduct):
		return "unsupported"
	case errors.Is(outcome.Err, core.ErrMisconfiguredProduct):
		return "misconfigured"
	case outcome.Reached(StateAuthenticated):
		return "rejected"
	default:
		return "unauthenticated"
	}
}

func (p *Pipeline) unsupportedStatus() int {
	if p != nil && validErrorStatus(p.UnsupportedStatus) {
		return p.UnsupportedStatus
	}
	return http.StatusUnprocessableEntity
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
