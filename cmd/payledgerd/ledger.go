package main

import (
	"encoding/json"
	"io"

	"github.com/goliatone/go-payledger/adapters/gocommand"
	ledgercommand "github.com/goliatone/go-payledger/command"
	"github.com/goliatone/go-payledger/core"
	ledgerquery "github.com/goliatone/go-payledger/query"
	"github.com/spf13/cobra"
)

// withDispatcher runs fn with the service handlers subscribed on the
// go-command dispatcher.
func withDispatcher(cmd *cobra.Command, opts *rootOptions, fn func(application *app) error) error {
	application, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer application.Close()
	if err := application.registerHandlers(); err != nil {
		return err
	}
	return fn(application)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func balanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show the token balance of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd, opts, func(*app) error {
				account, err := gocommand.Query[ledgerquery.GetAccountMessage, core.UserAccount](
					cmd.Context(),
					ledgerquery.GetAccountMessage{UserID: args[0]},
				)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), account)
			})
		},
	}
}

func transactionsCmd(opts *rootOptions) *cobra.Command {
	var page core.Page
	cmd := &cobra.Command{
		Use:   "transactions <user-id>",
		Short: "List ledger transactions of a user, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd, opts, func(*app) error {
				records, err := gocommand.Query[ledgerquery.ListTransactionsMessage, []core.TransactionRecord](
					cmd.Context(),
					ledgerquery.ListTransactionsMessage{UserID: args[0], Page: page},
				)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().IntVar(&page.Limit, "limit", core.DefaultPageLimit, "page size")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "page offset")
	return cmd
}

func failuresCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		filter core.FailureFilter
	)
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List credits that were acknowledged but not applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Status = core.FailureStatus(status)
			return withDispatcher(cmd, opts, func(*app) error {
				failures, err := gocommand.Query[ledgerquery.ListFailuresMessage, []core.CreditFailure](
					cmd.Context(),
					ledgerquery.ListFailuresMessage{Filter: filter},
				)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), failures)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(core.FailureStatusPending), "pending, resolved or empty for all")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "only failures of this user")
	cmd.Flags().IntVar(&filter.Page.Limit, "limit", core.DefaultPageLimit, "page size")
	cmd.Flags().IntVar(&filter.Page.Offset, "offset", 0, "page offset")
	return cmd
}

func replayCmd(opts *rootOptions) *cobra.Command {
	var resolveOnly bool
	cmd := &cobra.Command{
		Use:   "replay <failure-id>",
		Short: "Re-apply a recorded credit failure and mark it resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd, opts, func(*app) error {
				if resolveOnly {
					return gocommand.Dispatch(cmd.Context(), ledgercommand.ResolveFailureMessage{FailureID: args[0]})
				}
				result, err := gocommand.DispatchWithResult[ledgercommand.ReplayFailureMessage, core.ReplayResult](
					cmd.Context(),
					ledgercommand.ReplayFailureMessage{FailureID: args[0]},
				)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&resolveOnly, "resolve-only", false, "mark resolved without touching the ledger")
	return cmd
}
