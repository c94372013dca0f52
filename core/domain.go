package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeTokens       ProductType = "tokens"
	ProductTypeSubscription ProductType = "subscription"
)

// ParseProductType accepts the catalog spellings, including the legacy "saas"
// alias for subscriptions.
func ParseProductType(raw string) (ProductType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tokens", "token":
		return ProductTypeTokens, nil
	case "subscription", "saas":
		return ProductTypeSubscription, nil
	case "":
		return "", fmt.Errorf("core: product type is required")
	default:
		return "", fmt.Errorf("core: unknown product type %q", raw)
	}
}

// ProductGrant is the closed set of product variants. Only types in this
// package implement it.
type ProductGrant interface {
	ProductType() ProductType
	sealedGrant()
}

type TokensGrant struct {
	CreditAmount decimal.Decimal
}

func (TokensGrant) ProductType() ProductType { return ProductTypeTokens }
func (TokensGrant) sealedGrant()             {}

type SubscriptionGrant struct{}

func (SubscriptionGrant) ProductType() ProductType { return ProductTypeSubscription }
func (SubscriptionGrant) sealedGrant()             {}

// ProductInfo holds the fields shared by every product variant.
type ProductInfo struct {
	MerchantID        string
	ProductID         string
	Name              string
	ProviderProductID string
	PriceID           string
	LookupKey         string
	Price             decimal.Decimal
}

type ProductDescriptor struct {
	ProductInfo
	grant ProductGrant
}

func NewTokensProduct(info ProductInfo, creditAmount decimal.Decimal) (ProductDescriptor, error) {
	info = normalizeProductInfo(info)
	if err := validateProductInfo(info); err != nil {
		return ProductDescriptor{}, err
	}
	if !creditAmount.IsPositive() {
		return ProductDescriptor{}, &MisconfiguredProductError{
			MerchantID: info.MerchantID,
			ProductID:  info.ProductID,
			Reason:     "credit amount is missing",
		}
	}
	return ProductDescriptor{ProductInfo: info, grant: TokensGrant{CreditAmount: creditAmount}}, nil
}

func NewSubscriptionProduct(info ProductInfo) (ProductDescriptor, error) {
	info = normalizeProductInfo(info)
	if err := validateProductInfo(info); err != nil {
		return ProductDescriptor{}, err
	}
	return ProductDescriptor{ProductInfo: info, grant: SubscriptionGrant{}}, nil
}

func (d ProductDescriptor) Type() ProductType {
	if d.grant == nil {
		return ""
	}
	return d.grant.ProductType()
}

func (d ProductDescriptor) Grant() ProductGrant { return d.grant }

// CreditAmount reports the tokens granted per purchase. ok is false for any
// variant that does not credit the ledger.
func (d ProductDescriptor) CreditAmount() (decimal.Decimal, bool) {
	grant, ok := d.grant.(TokensGrant)
	if !ok {
		return decimal.Zero, false
	}
	return grant.CreditAmount, true
}

func (d ProductDescriptor) Key() string {
	return ProductKey(d.MerchantID, d.ProductID)
}

func ProductKey(merchantID string, productID string) string {
	return strings.TrimSpace(merchantID) + "/" + strings.TrimSpace(productID)
}

func normalizeProductInfo(info ProductInfo) ProductInfo {
	info.MerchantID = strings.TrimSpace(info.MerchantID)
	info.ProductID = strings.TrimSpace(info.ProductID)
	info.Name = strings.TrimSpace(info.Name)
	info.ProviderProductID = strings.TrimSpace(info.ProviderProductID)
	info.PriceID = strings.TrimSpace(info.PriceID)
	info.LookupKey = strings.TrimSpace(info.LookupKey)
	return info
}

func validateProductInfo(info ProductInfo) error {
	if info.MerchantID == "" {
		return &MisconfiguredProductError{ProductID: info.ProductID, Reason: "merchant id is missing"}
	}
	if info.ProductID == "" {
		return &MisconfiguredProductError{MerchantID: info.MerchantID, Reason: "product id is missing"}
	}
	if info.Price.IsNegative() {
		return &MisconfiguredProductError{MerchantID: info.MerchantID, ProductID: info.ProductID, Reason: "price is negative"}
	}
	return nil
}

type UserAccount struct {
	UserID       string
	TokenBalance decimal.Decimal
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserType string

const (
	UserTypeMember UserType = "member"
	UserTypeGuest  UserType = "guest"
	UserTypeAnon   UserType = "anon"
)

// ParseUserType resolves an empty value to fallback and rejects values that
// are not a known user type.
func ParseUserType(raw string, fallback UserType) (UserType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		if fallback == "" {
			fallback = UserTypeGuest
		}
		return fallback, nil
	}
	switch UserType(value) {
	case UserTypeMember, UserTypeGuest, UserTypeAnon:
		return UserType(value), nil
	}
	return "", fmt.Errorf("core: unknown user type %q", raw)
}

func (t UserType) IsMember() bool { return t == UserTypeMember }

// UserProfile is stored under UserID. ProfileID is the id recorded inside the
// profile itself; guest profiles written before sign-in carry the stale
// anonymous id there.
type UserProfile struct {
	UserID      string
	ProfileID   string
	DisplayName string
	UserType    UserType
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
	ProviderIDs []string
	TenantID    string
	Attributes  map[string]any
	Meta        map[string]any
}

// AccountRecord is what the identity collaborator knows about the user behind
// an assertion.
type AccountRecord struct {
	UID         string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	LastLoginAt *time.Time
	ProviderIDs []string
	TenantID    string
	Meta        map[string]any
}

func (a AccountRecord) Anonymous() bool {
	for _, providerID := range a.ProviderIDs {
		if strings.TrimSpace(providerID) != "" && providerID != "anonymous" {
			return false
		}
	}
	return true
}

type TimelineEntry struct {
	UserID    string
	Key       string
	Payload   map[string]any
	CreatedAt time.Time
}

// EventEnvelope is the verified, decoded provider event. It lives only for the
// duration of one request.
type EventEnvelope struct {
	EventID        string
	EventType      string
	Created        time.Time
	Livemode       bool
	Payload        json.RawMessage
	AssertionToken string
	ActingUserID   string
}

// PaymentSnapshot is the subset of the payment object kept on a transaction.
type PaymentSnapshot struct {
	SessionID         string          `json:"session_id,omitempty"`
	AmountMinor       int64           `json:"amount_minor,omitempty"`
	Currency          string          `json:"currency,omitempty"`
	CustomerID        string          `json:"customer_id,omitempty"`
	ClientReferenceID string          `json:"client_reference_id,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

type TransactionRecord struct {
	ID                 string
	UserID             string
	EventID            string
	EventType          string
	ProviderSessionID  string
	MerchantID         string
	ProductID          string
	Amount             decimal.Decimal
	PaymentAmountMinor int64
	Currency           string
	OccurredAt         time.Time
	RawSnapshot        json.RawMessage
	CreatedAt          time.Time
}

// CreditEntry is one atomic ledger unit: dedup claim, transaction append and
// balance increment.
type CreditEntry struct {
	TransactionID string
	UserID        string
	EventID       string
	EventType     string
	MerchantID    string
	ProductID     string
	Amount        decimal.Decimal
	OccurredAt    time.Time
	Snapshot      PaymentSnapshot
	CreatedAt     time.Time
}

type CreditResult struct {
	Account     UserAccount
	Transaction TransactionRecord
	Duplicate   bool
}

type FailureStatus string

const (
	FailureStatusPending  FailureStatus = "pending"
	FailureStatusResolved FailureStatus = "resolved"
)

type CreditFailure struct {
	ID         string
	EventID    string
	EventType  string
	UserID     string
	MerchantID string
	ProductID  string
	Amount     decimal.Decimal
	OccurredAt time.Time
	Snapshot   PaymentSnapshot
	Error      string
	Status     FailureStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type FailureFilter struct {
	Status FailureStatus
	UserID string
	Page   Page
}

type Page struct {
	Limit  int
	Offset int
}

const DefaultPageLimit = 50

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ReplayResult reports an operator replay of a recorded credit failure.
type ReplayResult struct {
	Failure     CreditFailure
	Account     UserAccount
	Transaction TransactionRecord
	Duplicate   bool
}
