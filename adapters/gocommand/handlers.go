package gocommand

import (
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	ledgercommand "github.com/goliatone/go-payledger/command"
	"github.com/goliatone/go-payledger/core"
	ledgerquery "github.com/goliatone/go-payledger/query"
)

// Handlers groups the ledger command and query handlers. Nil entries are
// skipped on registration.
type Handlers struct {
	ProcessWebhook   *ledgercommand.ProcessWebhookCommand
	ReplayFailure    *ledgercommand.ReplayFailureCommand
	ResolveFailure   *ledgercommand.ResolveFailureCommand
	GetAccount       *ledgerquery.GetAccountQuery
	ListTransactions *ledgerquery.ListTransactionsQuery
	GetFailure       *ledgerquery.GetFailureQuery
	ListFailures     *ledgerquery.ListFailuresQuery
	LookupProduct    *ledgerquery.LookupProductQuery
}

// Subscriptions tracks dispatcher subscriptions so they can be released
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterHandlers registers and subscribes every non-nil handler. On error
// the subscriptions made so far are released.
func RegisterHandlers(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errRegistryNotConfigured
	}
	subscriptions := Subscriptions{}
	register := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			subscriptions.Unsubscribe()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if handlers.ProcessWebhook != nil {
		if err := register(registerCommand[ledgercommand.ProcessWebhookMessage](adapter, handlers.ProcessWebhook, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ReplayFailure != nil {
		if err := register(registerCommand[ledgercommand.ReplayFailureMessage](adapter, handlers.ReplayFailure, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ResolveFailure != nil {
		if err := register(registerCommand[ledgercommand.ResolveFailureMessage](adapter, handlers.ResolveFailure, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.GetAccount != nil {
		if err := register(registerQuery[ledgerquery.GetAccountMessage, core.UserAccount](adapter, handlers.GetAccount, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListTransactions != nil {
		if err := register(registerQuery[ledgerquery.ListTransactionsMessage, []core.TransactionRecord](adapter, handlers.ListTransactions, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.GetFailure != nil {
		if err := register(registerQuery[ledgerquery.GetFailureMessage, core.CreditFailure](adapter, handlers.GetFailure, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListFailures != nil {
		if err := register(registerQuery[ledgerquery.ListFailuresMessage, []core.CreditFailure](adapter, handlers.ListFailures, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.LookupProduct != nil {
		if err := register(registerQuery[ledgerquery.LookupProductMessage, core.ProductDescriptor](adapter, handlers.LookupProduct, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}
