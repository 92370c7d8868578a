package emails

import (
	"context"

	"promptmarket/internal/pkg/money"

	"github.com/rs/zerolog/log"
)

// LogSender writes emails to the log. Used when no Brevo key is configured.
type LogSender struct{}

func (LogSender) SendWelcome(_ context.Context, toEmail, name string) error {
	log.Info().Str("to", toEmail).Str("template", "welcome").Msg("email skipped (no provider)")
	return nil
}

func (LogSender) SendPurchaseReceipt(_ context.Context, toEmail, _ string, r Receipt) error {
	log.Info().Str("to", toEmail).Str("template", "receipt").Str("order_number", r.OrderNumber).Msg("email skipped (no provider)")
	return nil
}

func (LogSender) SendSaleNotification(_ context.Context, toEmail, _ string, r Receipt) error {
	log.Info().Str("to", toEmail).Str("template", "sale").Str("order_number", r.OrderNumber).Msg("email skipped (no provider)")
	return nil
}

func (LogSender) SendRefundNotice(_ context.Context, toEmail, _ string, r Receipt) error {
	log.Info().Str("to", toEmail).Str("template", "refund").Str("order_number", r.OrderNumber).Msg("email skipped (no provider)")
	return nil
}

func (LogSender) SendPayoutProcessed(_ context.Context, toEmail, _ string, amount money.Cents, currency string) error {
	log.Info().Str("to", toEmail).Str("template", "payout").Str("amount", amount.String()).Str("currency", currency).Msg("email skipped (no provider)")
	return nil
}
