package notification

import (
	"context"
	"log/slog"
)

const (
	// KindOTPCode indicates a one-time code delivery to the user.
	KindOTPCode = "otp_code"
	// KindSecurityAlert indicates a lockout or suspicious-activity notice.
	KindSecurityAlert = "security_alert"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems. Real delivery
// (email/SMS/push) is an external collaborator.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. OTP codes go to debug
// level so production log configurations keep them out of the log stream.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	if message.Kind == KindOTPCode {
		n.logger.Debug("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
