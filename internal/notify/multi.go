package notify

import (
	"context"
	"log/slog"

	"github.com/funnelcast/funnelcast/internal/player"
	"github.com/funnelcast/funnelcast/internal/session"
)

var _ session.Notifier = (*Multi)(nil)

// Multi fans out notifications to all registered notifiers. A failure in one
// channel never blocks the others; errors are logged and swallowed.
type Multi struct {
	notifiers []session.Notifier
}

// NewMulti creates a notifier that delegates to all provided notifiers.
func NewMulti(notifiers ...session.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) SendLeadNotification(ctx context.Context, toEmail, toName string, sessionTitle string, lead player.Lead) error {
	for _, n := range m.notifiers {
		if err := n.SendLeadNotification(ctx, toEmail, toName, sessionTitle, lead); err != nil {
			slog.Error("multi-notifier: lead notification failed", "error", err)
		}
	}
	return nil
}

func (m *Multi) SendSessionCompletedNotification(ctx context.Context, toEmail, toName, companyID, sessionTitle, solutionTitle, journeySummary string) error {
	for _, n := range m.notifiers {
		if err := n.SendSessionCompletedNotification(ctx, toEmail, toName, companyID, sessionTitle, solutionTitle, journeySummary); err != nil {
			slog.Error("multi-notifier: completion notification failed", "error", err)
		}
	}
	return nil
}
