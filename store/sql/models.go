package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type profileRecord struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	UserID      string         `bun:"user_id,pk"`
	ProfileID   string         `bun:"profile_id,notnull"`
	DisplayName string         `bun:"display_name,notnull"`
	UserType    string         `bun:"user_type,notnull"`
	Email       string         `bun:"email,notnull"`
	ProviderIDs []string       `bun:"provider_ids,type:jsonb,notnull"`
	TenantID    string         `bun:"tenant_id,notnull"`
	Attributes  map[string]any `bun:"attributes,type:jsonb,notnull"`
	Meta        map[string]any `bun:"meta,type:jsonb,notnull"`
	LastLoginAt *time.Time     `bun:"last_login_at,nullzero"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type timelineEntryRecord struct {
	bun.BaseModel `bun:"table:user_timeline_entries,alias:ute"`

	UserID    string         `bun:"user_id,pk"`
	EntryKey  string         `bun:"entry_key,pk"`
	Payload   map[string]any `bun:"payload,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type accountRecord struct {
	bun.BaseModel `bun:"table:ledger_accounts,alias:la"`

	UserID       string          `bun:"user_id,pk"`
	TokenBalance decimal.Decimal `bun:"token_balance,notnull"`
	Version      int64           `bun:"version,notnull"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type transactionRecord struct {
	bun.BaseModel `bun:"table:ledger_transactions,alias:lt"`

	ID                 string          `bun:"id,pk"`
	UserID             string          `bun:"user_id,notnull"`
	EventID            string          `bun:"event_id,notnull"`
	EventType          string          `bun:"event_type,notnull"`
	ProviderSessionID  string          `bun:"provider_session_id,notnull"`
	MerchantID         string          `bun:"merchant_id,notnull"`
	ProductID          string          `bun:"product_id,notnull"`
	Amount             decimal.Decimal `bun:"amount,notnull"`
	PaymentAmountMinor int64           `bun:"payment_amount_minor,notnull"`
	Currency           string          `bun:"currency,notnull"`
	OccurredAt         time.Time       `bun:"occurred_at,notnull"`
	RawSnapshot        string          `bun:"raw_snapshot,notnull"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type processedEventRecord struct {
	bun.BaseModel `bun:"table:ledger_processed_events,alias:lpe"`

	EventID       string    `bun:"event_id,pk"`
	TransactionID string    `bun:"transaction_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type creditFailureRecord struct {
	bun.BaseModel `bun:"table:ledger_credit_failures,alias:lcf"`

	ID         string          `bun:"id,pk"`
	EventID    string          `bun:"event_id,notnull"`
	EventType  string          `bun:"event_type,notnull"`
	UserID     string          `bun:"user_id,notnull"`
	MerchantID string          `bun:"merchant_id,notnull"`
	ProductID  string          `bun:"product_id,notnull"`
	Amount     decimal.Decimal `bun:"amount,notnull"`
	OccurredAt time.Time       `bun:"occurred_at,notnull"`
	Snapshot   string          `bun:"snapshot,notnull"`
	Error      string          `bun:"error,notnull"`
	Status     string          `bun:"status,notnull"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ResolvedAt *time.Time      `bun:"resolved_at,nullzero"`
}
