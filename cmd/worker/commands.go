package main

import (
	"promptmarket/internal/infrastructure/database"
	"promptmarket/internal/pkg/money"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func notificationsCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Deliver queued notification emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, mux, err := container.TaskServer(concurrency)
			if err != nil {
				return err
			}
			log.Info().Int("concurrency", concurrency).Msg("notification worker started")
			return srv.Run(mux)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 5, "number of concurrent task handlers")
	return cmd
}

func payoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Schedule and send seller payouts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Create payouts for sellers whose pending earnings reach the minimum",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := container.Payouts.SchedulePayouts(cmd.Context(), money.FromFloat(container.Config.PayoutMinimum))
			if err != nil {
				return err
			}
			log.Info().Int("scheduled", n).Msg("payouts scheduled")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "process",
		Short: "Send every pending payout that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := container.Payouts.ProcessScheduled(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("processed", n).Msg("payouts processed")
			return nil
		},
	})
	return cmd
}

func purchasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "Purchase maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Cancel the intents of pending purchases older than PENDING_PURCHASE_TTL and fail them",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := container.Payments.ExpirePending(cmd.Context(), container.Config.PendingPurchaseTTL)
			if err != nil {
				return err
			}
			log.Info().Int("expired", n).Msg("pending purchases expired")
			return nil
		},
	})
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.AutoMigrate(container.DB); err != nil {
				return err
			}
			log.Info().Msg("schema migrated")
			return nil
		},
	}
}
