package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func reexportCmd() *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "reexport [order-id...]",
		Short: "Queue order confirmations for export to the ERP",
		Long: `Queue the given orders for export. With --failed every confirmation
whose last export failed is queued again. The API's export worker sends
queued rows on its next tick; use export-once to send them now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !failed && len(args) == 0 {
				return errors.New("pass order ids or --failed")
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if failed {
				n, err := a.ExportService.RequeueFailed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d failed exports\n", n)
			}
			for _, id := range args {
				if err := a.ExportService.Enqueue(ctx, id); err != nil {
					return fmt.Errorf("order %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Requeue every confirmation in FAILED export status")

	return cmd
}

func exportOnceCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "export-once",
		Short: "Send one batch of queued confirmations to the ERP and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 {
				limit = cfg.Export.BatchSize
			}
			res, err := a.ExportService.ProcessQueued(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, failed %d\n", res.Sent, res.Failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum confirmations to send (defaults to EXPORT_BATCH_SIZE)")

	return cmd
}

func rebuildSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-snapshot <order-id>",
		Short: "Rebuild and store the canonical confirmation snapshot of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			confirmation, _, err := a.ConfirmationService.Rebuild(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version=%s checksum=%s\n", confirmation.OrderID, confirmation.Version, confirmation.Checksum)
			return nil
		},
	}
}

func resendEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-email <order-id>",
		Short: "Send the confirmation email of an order again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ConfirmationService.SendEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "email sent for %s\n", args[0])
			return nil
		},
	}
}
