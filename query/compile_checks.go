package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payledger/core"
)

var (
	_ gocmd.Querier[GetAccountMessage, core.UserAccount]               = (*GetAccountQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, []core.TransactionRecord] = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[GetFailureMessage, core.CreditFailure]             = (*GetFailureQuery)(nil)
	_ gocmd.Querier[ListFailuresMessage, []core.CreditFailure]         = (*ListFailuresQuery)(nil)
	_ gocmd.Querier[LookupProductMessage, core.ProductDescriptor]      = (*LookupProductQuery)(nil)
)
