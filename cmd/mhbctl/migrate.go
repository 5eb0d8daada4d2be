package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := db.RunMigrations(ctx, conn, cfg.MigrationsPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date.")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied  %s\n", name)
			}
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			migrations, err := db.ListMigrations(ctx, conn, cfg.MigrationsPath)
			if err != nil {
				return err
			}
			printMigrations(cmd.OutOrStdout(), migrations)
			return nil
		},
	}
}

func printMigrations(out io.Writer, migrations []db.Migration) {
	if len(migrations) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return
	}
	pending := 0
	for _, m := range migrations {
		state := "applied"
		if !m.Applied {
			state = "pending"
			pending++
		}
		fmt.Fprintf(out, "%-8s %s\n", state, m.Name)
	}
	fmt.Fprintf(out, "\n%d migration(s), %d pending\n", len(migrations), pending)
}
