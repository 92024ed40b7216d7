// Package notify holds contact notifiers that need no external service.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/bryanwahyu/profixion/internal/domain/contact"
)

// LogNotifier writes contact messages to the application log. It is the
// fallback when no chat bot is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, m contact.Message) error {
	n.Logger.Info("contact message",
		zap.String("name", m.Name),
		zap.String("email", m.Email),
		zap.String("subject", m.Subject),
		zap.String("message", m.Body),
		zap.Time("received_at", m.ReceivedAt))
	return nil
}
