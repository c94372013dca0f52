package query

import (
	"strings"

	"github.com/goliatone/go-payledger/core"
)

const (
	TypeGetAccount       = "payledger.query.account.get"
	TypeListTransactions = "payledger.query.transactions.list"
	TypeGetFailure       = "payledger.query.failure.get"
	TypeListFailures     = "payledger.query.failures.list"
	TypeLookupProduct    = "payledger.query.product.lookup"
)

type GetAccountMessage struct {
	UserID string
}

func (GetAccountMessage) Type() string { return TypeGetAccount }

func (m GetAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type ListTransactionsMessage struct {
	UserID string
	Page   core.Page
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return validatePage(m.Page)
}

type GetFailureMessage struct {
	FailureID string
}

func (GetFailureMessage) Type() string { return TypeGetFailure }

func (m GetFailureMessage) Validate() error {
	if strings.TrimSpace(m.FailureID) == "" {
		return queryValidationError("failure_id", "failure id is required")
	}
	return nil
}

type ListFailuresMessage struct {
	Filter core.FailureFilter
}

func (ListFailuresMessage) Type() string { return TypeListFailures }

func (m ListFailuresMessage) Validate() error {
	switch m.Filter.Status {
	case "", core.FailureStatusPending, core.FailureStatusResolved:
	default:
		return queryValidationError("status", "status must be pending or resolved")
	}
	return validatePage(m.Filter.Page)
}

type LookupProductMessage struct {
	MerchantID string
	ProductID  string
}

func (LookupProductMessage) Type() string { return TypeLookupProduct }

func (m LookupProductMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return queryValidationError("merchant_id", "merchant id is required")
	}
	if strings.TrimSpace(m.ProductID) == "" {
		return queryValidationError("product_id", "product id is required")
	}
	return nil
}

func validatePage(page core.Page) error {
	if page.Limit < 0 {
		return queryInvalidInputError("query: limit must be >= 0")
	}
	if page.Offset < 0 {
		return queryInvalidInputError("query: offset must be >= 0")
	}
	return nil
}
