package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/volunteer-coordinator/internal/application"
)

// Sender is the transport a Dispatcher fans out to.
type Sender interface {
	Send(ctx context.Context, userID string, note application.Notification) error
}

// Dispatcher delivers notifications without blocking the caller. Each Notify
// call runs in its own goroutine against a bounded timeout; delivery
// failures are logged, never returned, so domain operations succeed or fail
// on their own state changes only.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher wires a detached dispatcher around the given transport.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, timeout: 30 * time.Second, logger: logger}
}

// Notify implements application.Notifier.
func (d *Dispatcher) Notify(userID string, note application.Notification) {
	if d == nil || d.sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sender.Send(ctx, userID, note); err != nil {
			d.logger.Warn("notification dispatch failed",
				"user_id", userID, "tag", note.Tag, "error", err)
		}
	}()
}
