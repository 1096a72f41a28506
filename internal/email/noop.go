package email

import (
	"context"

	"go.uber.org/zap"
)

// NoopSender logs emails to zap instead of delivering them.
// Use in development or when SMTP is not configured.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the email and returns nil. Attachment contents are not logged.
func (n *NoopSender) Send(_ context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	n.logger.Info("email (noop, not sent)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}
