package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-payledger/core"
)

const testSigningSecret = "identity-test-secret"

func signAssertion(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	return token
}

func baseClaims(subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":       subject,
		"email":     "reader@example.com",
		"name":      "Reader",
		"iat":       now.Add(-time.Minute).Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"auth_time": now.Add(-time.Minute).Unix(),
		"firebase": map[string]any{
			"sign_in_provider": "google.com",
			"identities": map[string]any{
				"google.com": []any{"1234"},
				"email":      []any{"reader@example.com"},
			},
			"tenant": "tenant_1",
		},
	}
}

func TestJWTDirectory_LookupAccountMapsClaims(t *testing.T) {
	directory, err := NewJWTDirectory(JWTDirectoryConfig{Secret: testSigningSecret})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	assertion := signAssertion(t, testSigningSecret, baseClaims("user_1"))

	account, err := directory.LookupAccount(context.Background(), "Bearer "+assertion)
	if err != nil {
		t.Fatalf("lookup account: %v", err)
	}
	if account.UID != "user_1" || account.Email != "reader@example.com" || account.DisplayName != "Reader" {
		t.Fatalf("unexpected account %#v", account)
	}
	if len(account.ProviderIDs) != 1 || account.ProviderIDs[0] != "google.com" {
		t.Fatalf("expected google.com provider, got %#v", account.ProviderIDs)
	}
	if account.TenantID != "tenant_1" {
		t.Fatalf("expected tenant_1, got %q", account.TenantID)
	}
	if account.LastLoginAt == nil || account.CreatedAt.IsZero() {
		t.Fatalf("expected auth_time and iat to populate timestamps")
	}
	if account.Anonymous() {
		t.Fatalf("expected linked account")
	}
}

func TestJWTDirectory_AnonymousProvider(t *testing.T) {
	directory, err := NewJWTDirectory(JWTDirectoryConfig{Secret: testSigningSecret})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	claims := baseClaims("anon_1")
	claims["firebase"] = map[string]any{"sign_in_provider": "anonymous"}

	account, err := directory.LookupAccount(context.Background(), signAssertion(t, testSigningSecret, claims))
	if err != nil {
		t.Fatalf("lookup account: %v", err)
	}
	if !account.Anonymous() {
		t.Fatalf("expected anonymous account, got providers %#v", account.ProviderIDs)
	}
}

func TestJWTDirectory_RejectsBadAssertions(t *testing.T) {
	directory, err := NewJWTDirectory(JWTDirectoryConfig{Secret: testSigningSecret, Issuer: "payledger-test"})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	expired := baseClaims("user_1")
	expired["iss"] = "payledger-test"
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIssuer := baseClaims("user_1")
	wrongIssuer["iss"] = "someone-else"
	valid := baseClaims("user_1")
	valid["iss"] = "payledger-test"

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong secret":   signAssertion(t, "other-secret", valid),
		"expired":        signAssertion(t, testSigningSecret, expired),
		"wrong issuer":   signAssertion(t, testSigningSecret, wrongIssuer),
		"missing expiry": signAssertion(t, testSigningSecret, jwt.MapClaims{"sub": "user_1", "iss": "payledger-test"}),
	}
	for name, assertion := range cases {
		_, err := directory.LookupAccount(context.Background(), assertion)
		var resolutionErr *core.IdentityResolutionError
		if !errors.As(err, &resolutionErr) {
			t.Fatalf("%s: expected identity resolution error, got %v", name, err)
		}
		if resolutionErr.StatusCode() != 400 {
			t.Fatalf("%s: expected status 400, got %d", name, resolutionErr.StatusCode())
		}
	}

	if _, err := directory.LookupAccount(context.Background(), signAssertion(t, testSigningSecret, valid)); err != nil {
		t.Fatalf("expected issuer-matching assertion to resolve: %v", err)
	}
}

func TestNewJWTDirectory_RequiresSecret(t *testing.T) {
	if _, err := NewJWTDirectory(JWTDirectoryConfig{}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
