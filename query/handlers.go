package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-payledger/core"
)

type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (core.UserAccount, error)
	ListTransactions(ctx context.Context, userID string, page core.Page) ([]core.TransactionRecord, error)
}

type FailureReader interface {
	GetFailure(ctx context.Context, id string) (core.CreditFailure, error)
	ListFailures(ctx context.Context, filter core.FailureFilter) ([]core.CreditFailure, error)
}

type GetAccountQuery struct {
	reader AccountReader
}

func NewGetAccountQuery(reader AccountReader) *GetAccountQuery {
	return &GetAccountQuery{reader: reader}
}

func (q *GetAccountQuery) Query(ctx context.Context, msg GetAccountMessage) (core.UserAccount, error) {
	if q == nil || q.reader == nil {
		return core.UserAccount{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.GetAccount(ctx, strings.TrimSpace(msg.UserID))
}

type ListTransactionsQuery struct {
	reader AccountReader
}

func NewListTransactionsQuery(reader AccountReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(
	ctx context.Context,
	msg ListTransactionsMessage,
) ([]core.TransactionRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListTransactions(ctx, strings.TrimSpace(msg.UserID), msg.Page.Normalize())
}

type GetFailureQuery struct {
	reader FailureReader
}

func NewGetFailureQuery(reader FailureReader) *GetFailureQuery {
	return &GetFailureQuery{reader: reader}
}

func (q *GetFailureQuery) Query(ctx context.Context, msg GetFailureMessage) (core.CreditFailure, error) {
	if q == nil || q.reader == nil {
		return core.CreditFailure{}, queryDependencyError("query: failure reader is required")
	}
	return q.reader.GetFailure(ctx, strings.TrimSpace(msg.FailureID))
}

type ListFailuresQuery struct {
	reader FailureReader
}

func NewListFailuresQuery(reader FailureReader) *ListFailuresQuery {
	return &ListFailuresQuery{reader: reader}
}

func (q *ListFailuresQuery) Query(ctx context.Context, msg ListFailuresMessage) ([]core.CreditFailure, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: failure reader is required")
	}
	filter := msg.Filter
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.Page = filter.Page.Normalize()
	return q.reader.ListFailures(ctx, filter)
}

type LookupProductQuery struct {
	catalog core.ProductCatalog
}

func NewLookupProductQuery(catalog core.ProductCatalog) *LookupProductQuery {
	return &LookupProductQuery{catalog: catalog}
}

func (q *LookupProductQuery) Query(_ context.Context, msg LookupProductMessage) (core.ProductDescriptor, error) {
	if q == nil || q.catalog == nil {
		return core.ProductDescriptor{}, queryDependencyError("query: product catalog is required")
	}
	return q.catalog.Lookup(msg.MerchantID, msg.ProductID)
}
