package observability

import (
	"log/slog"
	"os"
)

// SlogLogger backs Logger with the standard structured logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger writing leveled JSON records to stderr.
func NewSlogLogger(level slog.Level) *SlogLogger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &SlogLogger{l: slog.New(h)}
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key(), f.Value())
	}
	return attrs
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, toAttrs(fields)...) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, toAttrs(fields)...) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, toAttrs(fields)...) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, toAttrs(fields)...) }

func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(toAttrs(fields)...)}
}

// ParseLevel maps the LOG_LEVEL config string to a slog.Level, defaulting to
// Info for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
