package application

// Notification is the payload handed to the notification transport.
type Notification struct {
	Title string
	Body  string
	// Tag is a stable delivery key. The transport uses it to collapse
	// duplicate sends for the same logical notification.
	Tag  string
	Data map[string]string
}

// Notifier hands notifications to the transport collaborator. Delivery is
// best-effort and detached: implementations must never block the caller on
// transport I/O, and failures are logged rather than returned, so a failed
// send can never roll back the state change that triggered it.
type Notifier interface {
	Notify(userID string, note Notification)
}

// NopNotifier discards notifications. Useful default when no transport is
// configured.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, Notification) {}
