package main

import (
	"fmt"
	"os"

	"promptmarket/internal/app"
	"promptmarket/internal/config"
	"promptmarket/internal/infrastructure/logging"

	"github.com/spf13/cobra"
)

var container *app.Container

func main() {
	rootCmd := &cobra.Command{
		Use:   "worker",
		Short: "Background jobs for the prompt marketplace",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			logging.Setup(cfg)
			container, err = app.New(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if container != nil {
				container.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(payoutsCmd())
	rootCmd.AddCommand(purchasesCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
