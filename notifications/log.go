package notifications

import (
	"context"
	"log/slog"
)

// LogTransport records messages instead of delivering them. Useful for local
// development.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (l *LogTransport) Send(ctx context.Context, msg Message) error {
	l.log.InfoContext(ctx, "email_logged",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Bool("html", msg.HTML),
		slog.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
