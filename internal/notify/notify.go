// Package notify carries the user-facing emergency notification surface.
// The sync engine and interception policy emit through the Notifier
// interface; tests substitute a recording stub.
package notify

import "log/slog"

// Notifier receives emergency lifecycle notifications.
type Notifier interface {
	// AlertStored fires when an emergency alert is captured offline and
	// queued for later delivery.
	AlertStored(id int64)
	// AlertDelivered fires when a previously queued emergency alert is
	// confirmed sent to the backend.
	AlertDelivered(id int64)
}

// Log is a Notifier that emits structured log records. The foreground
// shell tails these to raise its own toasts/system notifications.
type Log struct {
	log *slog.Logger
}

// NewLog creates a log-backed notifier.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

// AlertStored implements Notifier.
func (n *Log) AlertStored(id int64) {
	n.log.Warn("emergency alert stored for sync when online",
		"alert_id", id,
		"notification", "Emergency Alert Stored",
		"body", "Your emergency alert has been stored and will be sent when connection is restored.",
	)
}

// AlertDelivered implements Notifier.
func (n *Log) AlertDelivered(id int64) {
	n.log.Info("emergency alert delivered",
		"alert_id", id,
		"notification", "Emergency Alert Sent",
		"body", "Your emergency alert has been successfully sent to authorities.",
	)
}
