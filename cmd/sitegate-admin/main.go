package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/sitegate/internal/bootstrap"
	"github.com/target/sitegate/internal/data"
)

const defaultCommandTimeout = 5 * time.Minute

// adminApp carries the dependencies every subcommand shares.
// The database hooks are replaced in tests.
type adminApp struct {
	out    io.Writer
	logger *slog.Logger

	withDB    func(ctx context.Context, fn func(db *sql.DB) error) error
	withStore func(ctx context.Context, fn func(store adminStore) error) error
}

func main() {
	logger := bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newAdminApp(os.Stdout, logger)
	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		logger.ErrorContext(ctx, "command failed", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newAdminApp(out io.Writer, logger *slog.Logger) *adminApp {
	app := &adminApp{out: out, logger: logger}
	app.withDB = app.connectDB
	app.withStore = func(ctx context.Context, fn func(adminStore) error) error {
		return app.withDB(ctx, func(db *sql.DB) error {
			return fn(data.NewAdminPrincipalRepo(db))
		})
	}
	return app
}

// connectDB loads configuration, opens PostgreSQL and closes it after fn.
func (a *adminApp) connectDB(ctx context.Context, fn func(db *sql.DB) error) (err error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	db, err := bootstrap.ConnectDB(ctx, cfg.Postgres, a.logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	return fn(db)
}

func newRootCmd(app *adminApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitegate-admin",
		Short: "Administrative tasks for sitegate",
		Long: `sitegate-admin manages the sitegate database: schema migrations and the
directory of administrative principals consulted when a session is elevated.

Connection settings come from the same DB_* environment variables (and .env file)
the sitegate service reads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.out)
	root.AddCommand(newMigrateCmd(app), newAdminsCmd(app))
	return root
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil || timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
