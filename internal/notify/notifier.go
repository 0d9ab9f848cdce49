package notify

import (
	"context"
	"log/slog"

	"live-support/pkg/logger"
)

// Notifier delivers out-of-band messages to the support staff. sent is false
// when no channel is configured; that is not an error.
type Notifier interface {
	NotifyIncomingCall(ctx context.Context, callerName, sessionID string) (sent bool, err error)
	SendOTP(ctx context.Context, username, code string) (sent bool, err error)
}

// LogNotifier writes notifications to the log and reports them as not sent.
// It stands in when no Telegram credentials are configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(l *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.Component(l, "notify")}
}

func (n *LogNotifier) NotifyIncomingCall(_ context.Context, callerName, sessionID string) (bool, error) {
	n.log.Info("incoming call", "caller_name", callerName, "session_id", sessionID, "delivered", false)
	return false, nil
}

// SendOTP never logs the code itself.
func (n *LogNotifier) SendOTP(_ context.Context, username, _ string) (bool, error) {
	n.log.Info("otp issued", "username", username, "delivered", false)
	return false, nil
}
