package main

import (
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/sitegate/internal/migrate"
)

func newMigrateCmd(app *adminApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return app.withDB(ctx, func(db *sql.DB) error {
				if err := migrate.Run(ctx, db); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return err
			})
		},
	}
	cmd.PersistentFlags().Duration("timeout", defaultCommandTimeout, "abort if the command runs longer than this")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return app.withDB(ctx, func(db *sql.DB) error {
				migrations, err := migrate.Status(ctx, db)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				return printMigrations(cmd.OutOrStdout(), migrations)
			})
		},
	})
	return cmd
}

func printMigrations(out io.Writer, migrations []migrate.Migration) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "VERSION\tAPPLIED"); err != nil {
		return err
	}
	for _, m := range migrations {
		applied := "pending"
		if m.AppliedAt != nil {
			applied = m.AppliedAt.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", m.Version, applied); err != nil {
			return err
		}
	}
	return tw.Flush()
}
