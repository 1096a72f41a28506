// Package sms delivers one-time codes by text message.
package sms

import (
	"context"

	"github.com/jmerrifield20/donationcore/internal/phone"
	"go.uber.org/zap"
)

// Sender delivers an SMS body to an E.164 number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// NoopSender logs messages instead of sending them. The body is logged in
// full so codes can be read from the console during development.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and returns nil.
func (n *NoopSender) Send(_ context.Context, to, body string) error {
	n.logger.Info("sms (noop, not sent)",
		zap.String("to", phone.Mask(to)),
		zap.String("body", body),
	)
	return nil
}
