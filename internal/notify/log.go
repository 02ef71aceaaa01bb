package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes reminders to the log instead of delivering them.
// Used when no bot token is configured (local runs, tests).
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the reminder and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	n.logger.Info("reminder (log only)",
		zap.Int64("chat_id", chatID),
		zap.String("text", text),
	)
	return nil
}
