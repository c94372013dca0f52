package main

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-payledger/core"
	"github.com/spf13/cobra"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts.configPath)
			if err != nil {
				return err
			}
			if driver := strings.TrimSpace(cfg.Database.Driver); driver == "" || driver == core.DatabaseDriverMemory {
				return fmt.Errorf("payledgerd: migrate needs a sqlite3 or postgres database driver")
			}
			client, err := openPersistence(cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := runMigrations(ctx, cfg, client); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
			return err
		},
	}
}
