package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/app"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run scheduled jobs once, on demand",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "release",
		Short: "Release escrow for invoices whose review window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				released, err := a.Svc.Invoices.ReleaseDue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "released %d invoice(s)\n", released)
				return nil
			})
		},
	})
	return cmd
}
