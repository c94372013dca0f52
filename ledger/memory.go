package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-payledger/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is a mutex-serialized ledger for tests and single-process runs.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[string]core.UserAccount
	transactions map[string]core.TransactionRecord
	processed    map[string]string
	failures     map[string]core.CreditFailure
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     map[string]core.UserAccount{},
		transactions: map[string]core.TransactionRecord{},
		processed:    map[string]string{},
		failures:     map[string]core.CreditFailure{},
	}
}

func (s *MemoryStore) ApplyCredit(_ context.Context, entry core.CreditEntry) (core.CreditResult, error) {
	if strings.TrimSpace(entry.EventID) == "" || strings.TrimSpace(entry.UserID) == "" {
		return core.CreditResult{}, fmt.Errorf("ledger: event id and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if transactionID, seen := s.processed[entry.EventID]; seen {
		transaction := s.transactions[transactionID]
		return core.CreditResult{
			Account:     s.accounts[transaction.UserID],
			Transaction: transaction,
			Duplicate:   true,
		}, nil
	}

	now := entry.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	transactionID := strings.TrimSpace(entry.TransactionID)
	if transactionID == "" {
		transactionID = uuid.NewString()
	}
	transaction := transactionFromEntry(transactionID, entry, now)

	account, ok := s.accounts[entry.UserID]
	if !ok {
		account = core.UserAccount{UserID: entry.UserID, TokenBalance: decimal.Zero, CreatedAt: now}
	}
	account.TokenBalance = account.TokenBalance.Add(entry.Amount)
	account.Version++
	account.UpdatedAt = now

	s.processed[entry.EventID] = transactionID
	s.transactions[transactionID] = transaction
	s.accounts[entry.UserID] = account
	return core.CreditResult{Account: account, Transaction: transaction}, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (core.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[strings.TrimSpace(userID)]
	if !ok {
		return core.UserAccount{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, userID)
	}
	return account, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID string, page core.Page) ([]core.TransactionRecord, error) {
	userID = strings.TrimSpace(userID)
	s.mu.Lock()
	out := make([]core.TransactionRecord, 0)
	for _, transaction := range s.transactions {
		if transaction.UserID == userID {
			out = append(out, transaction)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return paginate(out, page), nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, failure core.CreditFailure) error {
	failure.ID = strings.TrimSpace(failure.ID)
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	if failure.Status == "" {
		failure.Status = core.FailureStatusPending
	}
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failure.ID] = failure
	return nil
}

func (s *MemoryStore) GetFailure(_ context.Context, id string) (core.CreditFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	failure, ok := s.failures[strings.TrimSpace(id)]
	if !ok {
		return core.CreditFailure{}, fmt.Errorf("%w: %s", core.ErrFailureNotFound, id)
	}
	return failure, nil
}

func (s *MemoryStore) ListFailures(_ context.Context, filter core.FailureFilter) ([]core.CreditFailure, error) {
	userID := strings.TrimSpace(filter.UserID)
	s.mu.Lock()
	out := make([]core.CreditFailure, 0, len(s.failures))
	for _, failure := range s.failures {
		if filter.Status != "" && failure.Status != filter.Status {
			continue
		}
		if userID != "" && failure.UserID != userID {
			continue
		}
		out = append(out, failure)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, filter.Page), nil
}

func (s *MemoryStore) ResolveFailure(_ context.Context, id string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	failure, ok := s.failures[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrFailureNotFound, id)
	}
	resolved := resolvedAt.UTC()
	failure.Status = core.FailureStatusResolved
	failure.ResolvedAt = &resolved
	s.failures[failure.ID] = failure
	return nil
}

func transactionFromEntry(id string, entry core.CreditEntry, createdAt time.Time) core.TransactionRecord {
	return core.TransactionRecord{
		ID:                 id,
		UserID:             entry.UserID,
		EventID:            entry.EventID,
		EventType:          entry.EventType,
		ProviderSessionID:  entry.Snapshot.SessionID,
		MerchantID:         entry.MerchantID,
		ProductID:          entry.ProductID,
		Amount:             entry.Amount,
		PaymentAmountMinor: entry.Snapshot.AmountMinor,
		Currency:           entry.Snapshot.Currency,
		OccurredAt:         entry.OccurredAt,
		RawSnapshot:        append([]byte(nil), entry.Snapshot.Raw...),
		CreatedAt:          createdAt,
	}
}

func paginate[T any](items []T, page core.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

var (
	_ core.LedgerStore  = (*MemoryStore)(nil)
	_ core.FailureStore = (*MemoryStore)(nil)
)
