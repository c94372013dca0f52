package payledger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-payledger/adapters/gocommand"
	"github.com/goliatone/go-payledger/catalog"
	ledgercommand "github.com/goliatone/go-payledger/command"
	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/identity"
	"github.com/goliatone/go-payledger/ledger"
	ledgerquery "github.com/goliatone/go-payledger/query"
	"github.com/goliatone/go-payledger/webhooks"
	"github.com/shopspring/decimal"
)

const testWebhookSecret = "whsec_service_test"

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type flakyLedgerStore struct {
	*ledger.MemoryStore
	mu       sync.Mutex
	failures int
}

func (s *flakyLedgerStore) ApplyCredit(ctx context.Context, entry core.CreditEntry) (core.CreditResult, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return core.CreditResult{}, errors.New("database unavailable")
	}
	s.mu.Unlock()
	return s.MemoryStore.ApplyCredit(ctx, entry)
}

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	premium, err := core.NewTokensProduct(core.ProductInfo{MerchantID: "merchant_a", ProductID: "premium"}, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("tokens product: %v", err)
	}
	registry, err := catalog.NewRegistry(premium)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func testDirectory() *identity.MemoryDirectory {
	directory := identity.NewMemoryDirectory()
	directory.Add("tok_1", core.AccountRecord{UID: "user_1", ProviderIDs: []string{"google.com"}})
	return directory
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Webhook.Secret = testWebhookSecret
	return cfg
}

func eventPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","created":%d,"data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":499,"currency":"usd"}}}`,
		eventID, time.Now().Unix()))
}

func signedRequest(payload []byte, assertion string) webhooks.Request {
	at := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	_, _ = fmt.Fprintf(mac, "%d.%s", at, payload)
	headers := http.Header{}
	headers.Set("stripe-signature", fmt.Sprintf("t=%d,v1=%s", at, hex.EncodeToString(mac.Sum(nil))))
	headers.Set("x-firebase-user-auth", assertion)
	return webhooks.Request{MerchantID: "merchant_a", ProductID: "premium", Headers: headers, Body: payload}
}

func TestService_CreditsOnceUnderRedelivery(t *testing.T) {
	svc, err := NewService(testConfig(), WithRegistry(testRegistry(t)), WithAccountDirectory(testDirectory()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	req := signedRequest(eventPayload("evt_1"), "tok_1")

	first := svc.ProcessWebhook(ctx, req)
	if first.StatusCode != http.StatusOK || first.Body.Processed == nil || !*first.Body.Processed || first.Duplicate {
		t.Fatalf("expected processed credit, got %#v", first)
	}
	second := svc.ProcessWebhook(ctx, req)
	if second.StatusCode != http.StatusOK || !second.Body.Duplicate {
		t.Fatalf("expected duplicate acknowledgement, got %#v", second)
	}

	account, err := svc.GetAccount(ctx, "user_1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance 5, got %s", account.TokenBalance)
	}
	transactions, err := svc.ListTransactions(ctx, "user_1", core.Page{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 1 || transactions[0].EventID != "evt_1" {
		t.Fatalf("expected one evt_1 transaction, got %#v", transactions)
	}
}

func TestService_ReplayRecordedFailure(t *testing.T) {
	memory := ledger.NewMemoryStore()
	store := &flakyLedgerStore{MemoryStore: memory, failures: 1}
	svc, err := NewService(testConfig(),
		WithRegistry(testRegistry(t)),
		WithAccountDirectory(testDirectory()),
		WithLedgerStore(store),
		WithFailureStore(memory),
		WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	outcome := svc.ProcessWebhook(ctx, signedRequest(eventPayload("evt_9"), "tok_1"))
	if outcome.StatusCode != http.StatusOK || outcome.Body.Processed == nil || *outcome.Body.Processed {
		t.Fatalf("expected processed:false acknowledgement, got %#v", outcome)
	}
	pending, err := svc.ListFailures(ctx, core.FailureFilter{Status: core.FailureStatusPending})
	if err != nil {
		t.Fatalf("list failures: %v", err)
	}
	if len(pending) != 1 || pending[0].EventID != "evt_9" || !pending[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected one pending evt_9 failure, got %#v", pending)
	}

	replayed, err := svc.ReplayFailure(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Duplicate || !replayed.Account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected fresh credit on replay, got %#v", replayed)
	}
	if replayed.Failure.Status != core.FailureStatusResolved || replayed.Failure.ResolvedAt == nil {
		t.Fatalf("expected resolved failure, got %#v", replayed.Failure)
	}

	again, err := svc.ReplayFailure(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if !again.Duplicate {
		t.Fatalf("expected second replay to be a duplicate")
	}
	account, _ := svc.GetAccount(ctx, "user_1")
	if !account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance to stay 5, got %s", account.TokenBalance)
	}
}

func TestService_ReplayPricesFailureRecordedWithoutAmount(t *testing.T) {
	memory := ledger.NewMemoryStore()
	svc, err := NewService(testConfig(),
		WithRegistry(testRegistry(t)),
		WithAccountDirectory(testDirectory()),
		WithLedgerStore(memory),
		WithFailureStore(memory),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	for _, failure := range []core.CreditFailure{
		{ID: "fail_unpriced", EventID: "evt_20", EventType: "checkout.session.completed", UserID: "user_1", MerchantID: "merchant_a", ProductID: "premium"},
		{ID: "fail_ignored", EventID: "evt_21", EventType: "customer.created", UserID: "user_1", MerchantID: "merchant_a", ProductID: "premium"},
	} {
		failure.Status = core.FailureStatusPending
		failure.OccurredAt = fixedNow
		failure.CreatedAt = fixedNow
		if err := memory.RecordFailure(ctx, failure); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	replayed, err := svc.ReplayFailure(ctx, "fail_unpriced")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed.Transaction.Amount.Equal(decimal.NewFromInt(5)) || !replayed.Account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected catalog amount 5 on replay, got %#v", replayed)
	}

	if _, err := svc.ReplayFailure(ctx, "fail_ignored"); err == nil {
		t.Fatalf("expected non-credit event replay to fail")
	}
	account, _ := svc.GetAccount(ctx, "user_1")
	if !account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance to stay 5, got %s", account.TokenBalance)
	}
	ignored, err := svc.GetFailure(ctx, "fail_ignored")
	if err != nil || ignored.Status != core.FailureStatusPending {
		t.Fatalf("expected ignored failure to stay pending, got %#v %v", ignored, err)
	}
}

func TestService_ReplayUnknownFailure(t *testing.T) {
	svc, err := NewService(testConfig(), WithRegistry(testRegistry(t)), WithAccountDirectory(testDirectory()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ReplayFailure(context.Background(), "missing"); !errors.Is(err, core.ErrFailureNotFound) {
		t.Fatalf("expected failure not found, got %v", err)
	}
}

func TestNewService_RequiresSecrets(t *testing.T) {
	if _, err := NewService(DefaultConfig(), WithRegistry(testRegistry(t)), WithAccountDirectory(testDirectory())); err == nil {
		t.Fatalf("expected missing webhook secret error")
	}
	if _, err := NewService(testConfig(), WithRegistry(testRegistry(t))); err == nil {
		t.Fatalf("expected missing identity signing secret error")
	}
}

func TestNewService_LoadsCatalogAndJWTDirectoryFromConfig(t *testing.T) {
	dir := t.TempDir()
	content := "products:\n  - id: premium\n    credit_amount: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "merchant_a.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := testConfig()
	cfg.Catalog.Dir = dir
	cfg.Identity.SigningSecret = "jwt_secret"

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "user_jwt",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"firebase": map[string]any{"sign_in_provider": "google.com"},
	}).SignedString([]byte("jwt_secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	outcome := svc.ProcessWebhook(context.Background(), signedRequest(eventPayload("evt_jwt"), token))
	if outcome.StatusCode != http.StatusOK || outcome.UserID != "user_jwt" {
		t.Fatalf("expected credit for jwt user, got %#v", outcome)
	}
	product, err := svc.Catalog().Lookup("merchant_a", "premium")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if amount, ok := product.CreditAmount(); !ok || !amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected credit amount 5, got %s", amount)
	}
}

func TestService_RegisterCommandHandlers(t *testing.T) {
	svc, err := NewService(testConfig(), WithRegistry(testRegistry(t)), WithAccountDirectory(testDirectory()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := svc.RegisterCommandHandlers(adapter)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(subscriptions.Unsubscribe)
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	ctx := context.Background()
	outcome, err := gocommand.DispatchWithResult[ledgercommand.ProcessWebhookMessage, webhooks.Outcome](
		ctx,
		ledgercommand.ProcessWebhookMessage{Request: signedRequest(eventPayload("evt_cmd"), "tok_1")},
	)
	if err != nil {
		t.Fatalf("dispatch webhook: %v", err)
	}
	if outcome.StatusCode != http.StatusOK || outcome.EventID != "evt_cmd" {
		t.Fatalf("unexpected outcome %#v", outcome)
	}

	account, err := gocommand.Query[ledgerquery.GetAccountMessage, core.UserAccount](ctx, ledgerquery.GetAccountMessage{UserID: "user_1"})
	if err != nil {
		t.Fatalf("query account: %v", err)
	}
	if !account.TokenBalance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance 5, got %s", account.TokenBalance)
	}
}
