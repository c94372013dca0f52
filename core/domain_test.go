package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewTokensProduct_RequiresPositiveCreditAmount(t *testing.T) {
	info := ProductInfo{MerchantID: "app1", ProductID: "starter"}
	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		_, err := NewTokensProduct(info, amount)
		if !errors.Is(err, ErrMisconfiguredProduct) {
			t.Fatalf("expected misconfigured product for amount %s, got %v", amount, err)
		}
	}

	product, err := NewTokensProduct(info, decimal.RequireFromString("2.5"))
	if err != nil {
		t.Fatalf("new tokens product: %v", err)
	}
	amount, ok := product.CreditAmount()
	if !ok || !amount.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected credit amount 2.5, got %s ok=%v", amount, ok)
	}
	if product.Type() != ProductTypeTokens {
		t.Fatalf("expected tokens type, got %q", product.Type())
	}
	if product.Key() != "app1/starter" {
		t.Fatalf("unexpected key %q", product.Key())
	}
}

func TestSubscriptionProduct_HasNoCreditAmount(t *testing.T) {
	product, err := NewSubscriptionProduct(ProductInfo{MerchantID: "app1", ProductID: "pro"})
	if err != nil {
		t.Fatalf("new subscription product: %v", err)
	}
	if _, ok := product.CreditAmount(); ok {
		t.Fatalf("expected subscription to report no credit amount")
	}
	if _, ok := product.Grant().(SubscriptionGrant); !ok {
		t.Fatalf("expected subscription grant, got %T", product.Grant())
	}
}

func TestNewProduct_RequiresIdentifiers(t *testing.T) {
	if _, err := NewSubscriptionProduct(ProductInfo{ProductID: "pro"}); err == nil {
		t.Fatalf("expected missing merchant error")
	}
	if _, err := NewTokensProduct(ProductInfo{MerchantID: "app1"}, decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected missing product error")
	}
}

func TestParseProductType_AcceptsAliases(t *testing.T) {
	cases := map[string]ProductType{
		"tokens":       ProductTypeTokens,
		" Tokens ":     ProductTypeTokens,
		"subscription": ProductTypeSubscription,
		"saas":         ProductTypeSubscription,
	}
	for raw, expected := range cases {
		got, err := ParseProductType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != expected {
			t.Fatalf("expected %q for %q, got %q", expected, raw, got)
		}
	}
	if _, err := ParseProductType("bundle"); err == nil {
		t.Fatalf("expected unknown product type error")
	}
}

func TestParseUserType_ExplicitDefault(t *testing.T) {
	got, err := ParseUserType("", UserTypeAnon)
	if err != nil || got != UserTypeAnon {
		t.Fatalf("expected empty type to resolve to fallback, got %q err=%v", got, err)
	}
	got, err = ParseUserType("", "")
	if err != nil || got != UserTypeGuest {
		t.Fatalf("expected guest when no fallback is given, got %q err=%v", got, err)
	}
	if _, err := ParseUserType("admin", UserTypeGuest); err == nil {
		t.Fatalf("expected unknown user type error")
	}
}

func TestAccountRecord_Anonymous(t *testing.T) {
	if !(AccountRecord{UID: "u1"}).Anonymous() {
		t.Fatalf("expected account without providers to be anonymous")
	}
	if !(AccountRecord{UID: "u1", ProviderIDs: []string{"anonymous"}}).Anonymous() {
		t.Fatalf("expected anonymous sign-in provider to count as anonymous")
	}
	if (AccountRecord{UID: "u1", ProviderIDs: []string{"google.com"}}).Anonymous() {
		t.Fatalf("expected linked account not to be anonymous")
	}
}

func TestPage_Normalize(t *testing.T) {
	page := Page{Limit: 0, Offset: -4}.Normalize()
	if page.Limit != DefaultPageLimit || page.Offset != 0 {
		t.Fatalf("unexpected normalized page %#v", page)
	}
}
