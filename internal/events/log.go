package events

import (
	"log/slog"

	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
)

// LogSink writes events to the structured log. It is always attached so a
// headless run still leaves a progress trail.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logging.Named("events")}
}

func (s *LogSink) Publish(ev Event) {
	s.log.Info("progress",
		slog.String("tool", ev.Tool),
		slog.String("requestId", ev.RequestID),
		slog.Int("percent", ev.Percent),
		slog.String("message", ev.Message))
}
