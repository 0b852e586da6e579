package notification

import (
	"context"
	"time"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

// LogNotifier writes reset links to the structured log instead of sending
// mail. Delivery belongs to the mail service sitting behind this port.
type LogNotifier struct {
	logger      logger.Logger
	includeLink bool
}

var _ outbound.ResetNotifier = (*LogNotifier)(nil)

// NewLogNotifier logs the link itself only when includeLink is set, which
// should never be the case in production.
func NewLogNotifier(log logger.Logger, includeLink bool) *LogNotifier {
	return &LogNotifier{logger: log, includeLink: includeLink}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, link string, expiresAt time.Time) error {
	fields := map[string]interface{}{
		"email":      email,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"link":       logger.Redacted,
	}
	if n.includeLink {
		fields["link"] = link
	}
	n.logger.Info(ctx, "Password reset link issued", fields)
	return nil
}
