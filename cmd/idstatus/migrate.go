package main

import (
	"errors"

	"github.com/spf13/cobra"

	"idstatus/internal/platform/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.cfg.Postgres.URL == "" {
				return errors.New("postgres URL is required to migrate")
			}
			db, err := postgres.Open(ctx, opts.cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			opts.logger.InfoContext(ctx, "migrations applied", "applied", applied)
			return nil
		},
	}
}
