// Package notify defines the event contract toward the external notifier
// (the human follow-up channel) and a non-blocking dispatcher that retries
// failed deliveries. Notification is best-effort: it never blocks or rolls
// back the financial operation that produced the event.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// EventType enumerates the events the notifier consumes.
type EventType string

const (
	EventPaymentSubmitted    EventType = "payment_submitted"
	EventWithdrawalRequested EventType = "withdrawal_requested"
)

// Event is the structured envelope handed to the notifier. Payload carries
// summaries only: proof image bytes never travel in an event.
type Event struct {
	Type      EventType      `json:"type"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	UserEmail string         `json:"userEmail"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Notifier delivers one event to the external follow-up channel.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the structured log. It is the default sink
// when no external channel is configured and always succeeds.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info("notification",
		"type", string(ev.Type),
		"userId", ev.UserID,
		"userEmail", ev.UserEmail,
		"payload", ev.Payload,
	)
	return nil
}
