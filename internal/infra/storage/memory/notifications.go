package memory

import (
	"context"
	"log/slog"
	"sync"

	"donateo/internal/app/policies"
)

// Notifier records notifications and optionally logs them. Fail makes every
// call return the given error.
type Notifier struct {
	Logger *slog.Logger

	mu   sync.Mutex
	sent []policies.Notification
	fail error
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{Logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, note policies.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, note)
	if n.Logger != nil {
		n.Logger.Info("notification", "type", note.Type, "recipient_id", note.RecipientID, "admins", note.AdminBroadcast, "link", note.Link)
	}
	return nil
}

// Fail makes subsequent calls fail with err; nil restores normal delivery.
func (n *Notifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = err
}

// Sent returns a copy of the delivered notifications.
func (n *Notifier) Sent() []policies.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]policies.Notification(nil), n.sent...)
}

var _ policies.Notifier = (*Notifier)(nil)
