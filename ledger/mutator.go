package ledger

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payledger/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 10 * time.Millisecond
)

type CreditRequest struct {
	UserID     string
	EventID    string
	EventType  string
	MerchantID string
	ProductID  string
	Amount     decimal.Decimal
	OccurredAt time.Time
	Snapshot   core.PaymentSnapshot
}

type CreditResult struct {
	NewBalance  decimal.Decimal
	Account     core.UserAccount
	Transaction core.TransactionRecord
	Duplicate   bool
	Attempts    int
}

// Mutator applies credits through a LedgerStore. Each store call is one
// atomic unit; balance version conflicts are retried with linear backoff.
type Mutator struct {
	Store        core.LedgerStore
	MaxAttempts  int
	RetryBackoff time.Duration
	Observer     core.Observer
	Now          func() time.Time
	NewID        func() string
}

func NewMutator(store core.LedgerStore) *Mutator {
	return &Mutator{
		Store:        store,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
}

func (m *Mutator) ApplyCredit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	startedAt := time.Now()
	result, err := m.applyCredit(ctx, req)
	if m != nil {
		outcome := "credited"
		if result.Duplicate {
			outcome = "duplicate"
		}
		m.Observer.ObserveOperation(ctx, startedAt, "ledger_credit", err, map[string]any{
			"event_id":    req.EventID,
			"event_type":  req.EventType,
			"user_id":     req.UserID,
			"merchant_id": req.MerchantID,
			"product_id":  req.ProductID,
			"amount":      req.Amount.String(),
			"attempts":    result.Attempts,
			"outcome":     outcome,
		})
	}
	return result, err
}

func (m *Mutator) applyCredit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	if m == nil || m.Store == nil {
		return CreditResult{}, goerrors.New("ledger: store is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.EventID = strings.TrimSpace(req.EventID)
	if req.UserID == "" {
		return CreditResult{}, validationError("user_id", "user id is required")
	}
	if req.EventID == "" {
		return CreditResult{}, validationError("event_id", "event id is required")
	}
	if !req.Amount.IsPositive() {
		return CreditResult{}, &core.MisconfiguredProductError{
			MerchantID: req.MerchantID,
			ProductID:  req.ProductID,
			Reason:     "credit amount must be positive",
		}
	}

	now := m.now()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	entry := core.CreditEntry{
		TransactionID: m.newID(),
		UserID:        req.UserID,
		EventID:       req.EventID,
		EventType:     strings.TrimSpace(req.EventType),
		MerchantID:    strings.TrimSpace(req.MerchantID),
		ProductID:     strings.TrimSpace(req.ProductID),
		Amount:        req.Amount,
		OccurredAt:    occurredAt.UTC(),
		Snapshot:      req.Snapshot,
		CreatedAt:     now,
	}

	attempts := m.maxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		applied, err := m.Store.ApplyCredit(ctx, entry)
		if err == nil {
			return CreditResult{
				NewBalance:  applied.Account.TokenBalance,
				Account:     applied.Account,
				Transaction: applied.Transaction,
				Duplicate:   applied.Duplicate,
				Attempts:    attempt,
			}, nil
		}
		lastErr = err
		if !errors.Is(err, core.ErrBalanceConflict) || attempt == attempts {
			break
		}
		m.Observer.LogWarn(ctx, "ledger balance conflict, retrying", map[string]any{
			"event_id": entry.EventID,
			"user_id":  entry.UserID,
			"attempt":  attempt,
		})
		if err := sleepContext(ctx, m.backoff()*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return CreditResult{Attempts: attempts}, &core.LedgerWriteError{
		EventID: entry.EventID,
		UserID:  entry.UserID,
		Amount:  entry.Amount,
		Cause:   lastErr,
	}
}

func (m *Mutator) GetAccount(ctx context.Context, userID string) (core.UserAccount, error) {
	if m == nil || m.Store == nil {
		return core.UserAccount{}, errors.New("ledger: store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.UserAccount{}, validationError("user_id", "user id is required")
	}
	return m.Store.GetAccount(ctx, userID)
}

func (m *Mutator) ListTransactions(ctx context.Context, userID string, page core.Page) ([]core.TransactionRecord, error) {
	if m == nil || m.Store == nil {
		return nil, errors.New("ledger: store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user_id", "user id is required")
	}
	return m.Store.ListTransactions(ctx, userID, page.Normalize())
}

func validationError(field string, message string) error {
	return goerrors.NewValidation("ledger: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Mutator) maxAttempts() int {
	if m.MaxAttempts > 0 {
		return m.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (m *Mutator) backoff() time.Duration {
	if m.RetryBackoff >= 0 {
		return m.RetryBackoff
	}
	return DefaultRetryBackoff
}

func (m *Mutator) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Mutator) newID() string {
	if m.NewID != nil {
		if id := strings.TrimSpace(m.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
