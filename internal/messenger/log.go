package messenger

import (
	"context"
	"log/slog"
)

// LogSender writes outbound messages to the log. Default for local runs
// without WhatsApp credentials.
type LogSender struct{}

func NewLogSender() *LogSender { return &LogSender{} }

func (s *LogSender) SendText(ctx context.Context, to, body string) error {
	slog.Info("outbound message", "to", to, "body", body)
	return nil
}
