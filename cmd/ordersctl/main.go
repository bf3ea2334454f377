package main

import (
	"fmt"
	"os"

	"meal-order-backend/internal/app"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operator tools for order confirmations, exports and emails",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reexportCmd())
	rootCmd.AddCommand(exportOnceCmd())
	rootCmd.AddCommand(rebuildSnapshotCmd())
	rootCmd.AddCommand(resendEmailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads config the same way the API does. Emails are sent synchronously so the
// command reports their outcome before exiting.
func openApp() (*app.App, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Email.Async = false

	a, err := app.New(cfg, logger.New(cfg.Log))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}
