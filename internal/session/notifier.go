package session

import (
	"context"

	"github.com/funnelcast/funnelcast/internal/player"
)

// Notifier delivers author-facing notifications about viewer activity.
// Implementations must be safe for concurrent use; delivery failures are
// logged by the caller and never surfaced to viewers.
type Notifier interface {
	SendLeadNotification(ctx context.Context, toEmail, toName string, sessionTitle string, lead player.Lead) error
	SendSessionCompletedNotification(ctx context.Context, toEmail, toName, companyID, sessionTitle, solutionTitle, journeySummary string) error
}
