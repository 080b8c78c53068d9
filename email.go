package nextauth

import (
	"context"
	"log/slog"
)

// ConsoleSender is a development send callback that logs verification
// messages instead of delivering them. Wire it into an EmailProvider or
// SMSProvider while a real delivery integration is not available.
func ConsoleSender(logger *slog.Logger) func(ctx context.Context, params VerificationParams) error {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, params VerificationParams) error {
		logger.Info("verification message (console sender)",
			"to", params.Identifier,
			"url", params.URL,
			"expires", params.Expires,
		)
		return nil
	}
}
