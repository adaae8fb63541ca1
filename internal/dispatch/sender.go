package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a rendered message to a list of email addresses through a
// mail relay. The whole recipient list is one relay operation: there is no
// partial success. A nil return means the relay accepted the batch; an error
// carries the relay's diagnostic text.
type Sender interface {
	Send(ctx context.Context, subject, body string, to []string) error
}

// LogSender is a sender that only logs deliveries (for testing/development)
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, subject, body string, to []string) error {
	s.logger.Info("email sent",
		zap.String("subject", subject),
		zap.Strings("to", to),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
