package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/app"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

func newWebhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Inspect recorded Stripe events",
	}

	var limit int
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List events whose processing failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 500 {
				return fmt.Errorf("--limit must be between 1 and 500")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				events, err := a.Repos.Webhooks.ListFailed(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printWebhookEvents(cmd.OutOrStdout(), events)
				return nil
			})
		},
	}
	failed.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events")
	cmd.AddCommand(failed)
	return cmd
}

func printWebhookEvents(out io.Writer, events []models.WebhookEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No failed events.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tTYPE\tATTEMPTS\tRECEIVED\tERROR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.StripeEventID, e.EventType, e.Attempts, e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.Error)
	}
	w.Flush()
}
