package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ProductCatalog resolves the product a webhook route points at. Lookups are
// pure.
type ProductCatalog interface {
	Lookup(merchantID string, productID string) (ProductDescriptor, error)
}

// AccountDirectory turns an identity assertion into the account it names.
type AccountDirectory interface {
	LookupAccount(ctx context.Context, assertion string) (AccountRecord, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, bool, error)
	SaveProfile(ctx context.Context, profile UserProfile) error
}

type TimelineStore interface {
	AppendTimeline(ctx context.Context, entry TimelineEntry) error
	ListTimeline(ctx context.Context, userID string) ([]TimelineEntry, error)
	// MoveTimeline copies every entry of fromUserID to toUserID, keeping
	// entries already present under toUserID, then removes the source set.
	MoveTimeline(ctx context.Context, fromUserID string, toUserID string) (int, error)
}

type LedgerStore interface {
	ApplyCredit(ctx context.Context, entry CreditEntry) (CreditResult, error)
	GetAccount(ctx context.Context, userID string) (UserAccount, error)
	ListTransactions(ctx context.Context, userID string, page Page) ([]TransactionRecord, error)
}

type FailureSink interface {
	RecordFailure(ctx context.Context, failure CreditFailure) error
}

type FailureStore interface {
	FailureSink
	GetFailure(ctx context.Context, id string) (CreditFailure, error)
	ListFailures(ctx context.Context, filter FailureFilter) ([]CreditFailure, error)
	ResolveFailure(ctx context.Context, id string, resolvedAt time.Time) error
}

// StoreProvider is implemented by persistence factories that build every
// store the service needs from one connection.
type StoreProvider interface {
	ProfileStore() ProfileStore
	TimelineStore() TimelineStore
	LedgerStore() LedgerStore
	FailureStore() FailureStore
}
