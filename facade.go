package payledger

import (
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-payledger/adapters/gocommand"
	ledgercommand "github.com/goliatone/go-payledger/command"
	ledgerquery "github.com/goliatone/go-payledger/query"
)

type Commands struct {
	ProcessWebhook *ledgercommand.ProcessWebhookCommand
	ReplayFailure  *ledgercommand.ReplayFailureCommand
	ResolveFailure *ledgercommand.ResolveFailureCommand
}

type Queries struct {
	GetAccount       *ledgerquery.GetAccountQuery
	ListTransactions *ledgerquery.ListTransactionsQuery
	GetFailure       *ledgerquery.GetFailureQuery
	ListFailures     *ledgerquery.ListFailuresQuery
	LookupProduct    *ledgerquery.LookupProductQuery
}

func (s *Service) Commands() Commands {
	if s == nil {
		return Commands{}
	}
	return Commands{
		ProcessWebhook: ledgercommand.NewProcessWebhookCommand(s),
		ReplayFailure:  ledgercommand.NewReplayFailureCommand(s),
		ResolveFailure: ledgercommand.NewResolveFailureCommand(s),
	}
}

func (s *Service) Queries() Queries {
	if s == nil {
		return Queries{}
	}
	return Queries{
		GetAccount:       ledgerquery.NewGetAccountQuery(s),
		ListTransactions: ledgerquery.NewListTransactionsQuery(s),
		GetFailure:       ledgerquery.NewGetFailureQuery(s),
		ListFailures:     ledgerquery.NewListFailuresQuery(s),
		LookupProduct:    ledgerquery.NewLookupProductQuery(s.catalog),
	}
}

// Handlers bundles every command and query for dispatcher registration.
func (s *Service) Handlers() gocommand.Handlers {
	commands := s.Commands()
	queries := s.Queries()
	return gocommand.Handlers{
		ProcessWebhook:   commands.ProcessWebhook,
		ReplayFailure:    commands.ReplayFailure,
		ResolveFailure:   commands.ResolveFailure,
		GetAccount:       queries.GetAccount,
		ListTransactions: queries.ListTransactions,
		GetFailure:       queries.GetFailure,
		ListFailures:     queries.ListFailures,
		LookupProduct:    queries.LookupProduct,
	}
}

// RegisterCommandHandlers registers and subscribes the service handlers on
// adapter. Callers release them with Subscriptions.Unsubscribe.
func (s *Service) RegisterCommandHandlers(adapter *gocommand.RegistryAdapter, runnerOpts ...runner.Option) (gocommand.Subscriptions, error) {
	return gocommand.RegisterHandlers(adapter, s.Handlers(), runnerOpts...)
}
