// Command mhbctl is the operator CLI: migrations, sweeps and dispute
// resolution against the same database the server uses.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/app"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/config"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/db"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mhbctl",
		Short:        "MyHomeBro operator tooling",
		Long:         "mhbctl runs migrations, escrow sweeps and staff dispute actions outside the HTTP API.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newDisputeCmd())
	cmd.AddCommand(newWebhooksCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mhbctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// connect loads configuration from the environment and opens the database.
func connect(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init("warn", cfg.Env)

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, conn, nil
}

// withApp runs fn against a fully wired application and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	a, err := app.New(cfg, conn)
	if err != nil {
		return err
	}
	defer a.Svc.Notifications.Wait()
	return fn(a)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
