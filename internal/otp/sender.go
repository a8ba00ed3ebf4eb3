package otp

import (
	"context"
	"log/slog"
)

// Sender dispatches a one-time code to an identifier (a mobile number).
// Implementations must not store the code.
type Sender interface {
	Send(ctx context.Context, mobile, code string) error
}

// LogSender writes codes to the log instead of sending them.
// Dev-mode only; it logs the plain code.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the code.
func (s *LogSender) Send(ctx context.Context, mobile, code string) error {
	s.logger.Warn("otp delivery in log mode", "mobile", mobile, "code", code)
	return nil
}
