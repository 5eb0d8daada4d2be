package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/app"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

func newDisputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "Staff actions on disputes",
	}
	cmd.AddCommand(newDisputeResolveCmd())
	return cmd
}

func newDisputeResolveCmd() *cobra.Command {
	var (
		adminID    string
		outcome    string
		resolution string
	)

	cmd := &cobra.Command{
		Use:   "resolve <dispute-id>",
		Short: "Resolve a dispute and unfreeze its escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("dispute id: %w", err)
			}
			staff, err := uuid.Parse(adminID)
			if err != nil {
				return fmt.Errorf("--admin: %w", err)
			}
			in := service.ResolveDisputeInput{Outcome: outcome, Resolution: resolution}
			actor := service.Actor{UserID: staff, Role: valueobject.RoleAdmin}

			return withApp(cmd.Context(), func(a *app.App) error {
				d, err := a.Svc.Disputes.Resolve(cmd.Context(), actor, id, in)
				if err != nil {
					return err
				}
				printDispute(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&adminID, "admin", "", "user id of the staff member resolving (required)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "resolved_contractor, resolved_homeowner or canceled (required)")
	cmd.Flags().StringVar(&resolution, "resolution", "", "resolution notes shown to both parties (required)")
	_ = cmd.MarkFlagRequired("admin")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

func printDispute(out io.Writer, d *models.Dispute) {
	fmt.Fprintf(out, "dispute %s\n", d.ID)
	fmt.Fprintf(out, "  agreement: %s\n", d.AgreementID)
	fmt.Fprintf(out, "  status:    %s\n", d.Status)
}
