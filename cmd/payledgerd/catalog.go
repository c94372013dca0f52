package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/goliatone/go-payledger/catalog"
	"github.com/spf13/cobra"
)

func catalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the merchant product catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [dir]",
		Short: "Load every catalog file and report errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadCatalog(cmd, opts, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d merchants, %d products\n", len(registry.Merchants()), registry.Len())
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list [dir]",
		Short: "List products per merchant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadCatalog(cmd, opts, args)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MERCHANT\tPRODUCT\tTYPE\tCREDIT")
			for _, merchantID := range registry.Merchants() {
				for _, product := range registry.Products(merchantID) {
					credit := "-"
					if amount, ok := product.CreditAmount(); ok {
						credit = amount.String()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", product.MerchantID, product.ProductID, product.Type(), credit)
				}
			}
			return w.Flush()
		},
	})
	return cmd
}

func loadCatalog(cmd *cobra.Command, opts *rootOptions, args []string) (*catalog.Registry, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		cfg, err := loadConfig(cmd.Context(), opts.configPath)
		if err != nil {
			return nil, err
		}
		dir = cfg.Catalog.Dir
	}
	return catalog.LoadDir(dir)
}
