package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payledger/core"
	"github.com/shopspring/decimal"
)

type conflictingStore struct {
	*MemoryStore
	conflicts int
	calls     int
	err       error
}

func (s *conflictingStore) ApplyCredit(ctx context.Context, entry core.CreditEntry) (core.CreditResult, error) {
	s.calls++
	if s.err != nil {
		return core.CreditResult{}, s.err
	}
	if s.calls <= s.conflicts {
		return core.CreditResult{}, core.ErrBalanceConflict
	}
	return s.MemoryStore.ApplyCredit(ctx, entry)
}

func creditRequest(eventID string, amount int64) CreditRequest {
	return CreditRequest{
		UserID:     "user_1",
		EventID:    eventID,
		EventType:  "checkout.session.completed",
		MerchantID: "app1",
		ProductID:  "starter",
		Amount:     decimal.NewFromInt(amount),
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Snapshot:   core.PaymentSnapshot{SessionID: "cs_1", AmountMinor: 499, Currency: "usd"},
	}
}

func TestMutator_RedeliveredEventCreditsOnce(t *testing.T) {
	store := NewMemoryStore()
	mutator := NewMutator(store)
	ctx := context.Background()

	first, err := mutator.ApplyCredit(ctx, creditRequest("evt_1", 5))
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	second, err := mutator.ApplyCredit(ctx, creditRequest("evt_1", 5))
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if first.Duplicate || !second.Duplicate {
		t.Fatalf("expected second delivery to be a duplicate, got %v/%v", first.Duplicate, second.Duplicate)
	}
	if !second.NewBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance 5 after redelivery, got %s", second.NewBalance)
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("expected duplicate to return the original transaction")
	}
	transactions, _ := mutator.ListTransactions(ctx, "user_1", core.Page{})
	if len(transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(transactions))
	}
	if transactions[0].ProviderSessionID != "cs_1" || transactions[0].Currency != "usd" {
		t.Fatalf("expected snapshot fields on transaction, got %#v", transactions[0])
	}
}

func TestMutator_BalanceMatchesTransactionSum(t *testing.T) {
	store := NewMemoryStore()
	mutator := NewMutator(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := creditRequest("evt_"+string(rune('a'+i)), 3)
			if _, err := mutator.ApplyCredit(ctx, req); err != nil {
				t.Errorf("credit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	account, err := mutator.GetAccount(ctx, "user_1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	transactions, _ := mutator.ListTransactions(ctx, "user_1", core.Page{Limit: 100})
	sum := decimal.Zero
	for _, transaction := range transactions {
		sum = sum.Add(transaction.Amount)
	}
	if !account.TokenBalance.Equal(sum) || !sum.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected balance %s to equal transaction sum 60, got %s", account.TokenBalance, sum)
	}
	if account.Version != 20 {
		t.Fatalf("expected version 20, got %d", account.Version)
	}
}

func TestMutator_ConcurrentRedeliveriesCreditOnce(t *testing.T) {
	store := NewMemoryStore()
	mutator := NewMutator(store)
	ctx := context.Background()

	const deliveries = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	var failures []error
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := mutator.ApplyCredit(ctx, creditRequest("evt_same", 5))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if !result.Duplicate {
				fresh++
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("credit: %v", failures[0])
	}
	if fresh != 1 {
		t.Fatalf("expected exactly one applied credit, got %d", fresh)
	}
	account, err := store.GetAccount(ctx, "user_1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance 5, got %s", account.TokenBalance)
	}
	transactions, _ := store.ListTransactions(ctx, "user_1", core.Page{})
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
}

func TestMutator_RetriesBalanceConflicts(t *testing.T) {
	store := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	mutator := NewMutator(store)
	mutator.RetryBackoff = 0

	result, err := mutator.ApplyCredit(context.Background(), creditRequest("evt_1", 5))
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if result.Attempts != 3 || store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d (calls=%d)", result.Attempts, store.calls)
	}
}

func TestMutator_ExhaustedConflictsBecomeLedgerWriteFailure(t *testing.T) {
	store := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 10}
	mutator := NewMutator(store)
	mutator.MaxAttempts = 3
	mutator.RetryBackoff = 0

	_, err := mutator.ApplyCredit(context.Background(), creditRequest("evt_1", 5))
	var writeErr *core.LedgerWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected ledger write error, got %v", err)
	}
	if !errors.Is(err, core.ErrBalanceConflict) || store.calls != 3 {
		t.Fatalf("expected conflict cause after 3 calls, got %v (calls=%d)", err, store.calls)
	}
	if writeErr.EventID != "evt_1" || writeErr.UserID != "user_1" || !writeErr.Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected failure context on error, got %#v", writeErr)
	}
}

func TestMutator_StoreFailureIsNotRetried(t *testing.T) {
	store := &conflictingStore{MemoryStore: NewMemoryStore(), err: errors.New("disk full")}
	mutator := NewMutator(store)

	_, err := mutator.ApplyCredit(context.Background(), creditRequest("evt_1", 5))
	if !errors.Is(err, core.ErrLedgerWrite) {
		t.Fatalf("expected ledger write error, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected a single store call, got %d", store.calls)
	}
}

func TestMutator_ValidatesRequest(t *testing.T) {
	mutator := NewMutator(NewMemoryStore())
	ctx := context.Background()

	missingUser := creditRequest("evt_1", 5)
	missingUser.UserID = " "
	_, err := mutator.ApplyCredit(ctx, missingUser)
	var validation *goerrors.Error
	if !goerrors.As(err, &validation) || validation.Code != 400 {
		t.Fatalf("expected 400 validation error, got %v", err)
	}

	missingEvent := creditRequest("", 5)
	if _, err := mutator.ApplyCredit(ctx, missingEvent); err == nil {
		t.Fatalf("expected missing event id error")
	}

	for _, amount := range []int64{0, -3} {
		_, err := mutator.ApplyCredit(ctx, creditRequest("evt_2", amount))
		if !errors.Is(err, core.ErrMisconfiguredProduct) {
			t.Fatalf("expected misconfigured product for amount %d, got %v", amount, err)
		}
	}
	if _, err := mutator.GetAccount(ctx, "user_1"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected no account after rejected credits, got %v", err)
	}
}

func TestMemoryStore_FailureLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	failure := core.CreditFailure{
		ID:      "fail_1",
		EventID: "evt_1",
		UserID:  "user_1",
		Amount:  decimal.NewFromInt(5),
		Error:   "ledger write failed",
	}
	if err := store.RecordFailure(ctx, failure); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	pending, _ := store.ListFailures(ctx, core.FailureFilter{Status: core.FailureStatusPending})
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending failure, got %d", len(pending))
	}
	if err := store.ResolveFailure(ctx, "fail_1", time.Now()); err != nil {
		t.Fatalf("resolve failure: %v", err)
	}
	stored, err := store.GetFailure(ctx, "fail_1")
	if err != nil {
		t.Fatalf("get failure: %v", err)
	}
	if stored.Status != core.FailureStatusResolved || stored.ResolvedAt == nil {
		t.Fatalf("expected resolved failure, got %#v", stored)
	}
	if err := store.ResolveFailure(ctx, "missing", time.Now()); !errors.Is(err, core.ErrFailureNotFound) {
		t.Fatalf("expected failure not found, got %v", err)
	}
}
