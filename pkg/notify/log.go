package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the application log.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Name implements Sender.
func (s *LogSender) Name() string { return ChannelLog }

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("username", msg.Username),
		zap.String("reason", msg.Reason),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
