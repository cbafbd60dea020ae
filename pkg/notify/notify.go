// Package notify is the gateway to the external push-delivery service.
// Delivery is best-effort and fire-and-forget: no caller ever blocks on, or
// fails because of, a notification.
package notify

import (
	"log/slog"
)

// Notifier hands one message to the delivery transport.
type Notifier interface {
	Send(userID, title, body string) error
}

// LogNotifier writes notifications to the log. Default when no transport is
// configured; also the test double.
type LogNotifier struct{}

func (LogNotifier) Send(userID, title, body string) error {
	slog.Info("notification", "user_id", userID, "title", title, "body", body)
	return nil
}

// Dispatch sends in a detached goroutine. Errors and panics are logged and
// swallowed so the caller's transaction outcome is never affected.
func Dispatch(n Notifier, userID, title, body string) {
	if n == nil || userID == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("notification dispatch panicked", "user_id", userID, "panic", r)
			}
		}()
		if err := n.Send(userID, title, body); err != nil {
			slog.Warn("notification dispatch failed", "user_id", userID, "err", err)
		}
	}()
}
