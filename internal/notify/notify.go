// Package notify delivers password reset links to account holders.
package notify

import (
	"context"
	"log/slog"
	"time"
)

const RoutingKeyPasswordResetRequested = "account.password_reset_requested"

// Reset is a single password reset request ready for delivery.
type Reset struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Notifier interface {
	PasswordResetRequested(ctx context.Context, r Reset) error
}

// LogNotifier writes reset links to the application log. It stands in for a
// mailer in development.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) PasswordResetRequested(ctx context.Context, r Reset) error {
	n.log.InfoContext(ctx, "password reset requested",
		"account_id", r.AccountID,
		"email", r.Email,
		"link", r.Link,
		"expires_at", r.ExpiresAt.Format(time.RFC3339),
	)
	return nil
}
