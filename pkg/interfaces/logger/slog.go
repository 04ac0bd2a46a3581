package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// SlogLogger forwards structured fields to a log/slog handler.
type SlogLogger struct {
	inner *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlog wraps the given handler. A nil handler falls back to slog.Default.
func NewSlog(handler slog.Handler) *SlogLogger {
	if handler == nil {
		return &SlogLogger{inner: slog.Default()}
	}
	return &SlogLogger{inner: slog.New(handler)}
}

// NewWriter builds a logger writing to w in the given format ("json" or "text")
// at the given level name.
func NewWriter(w io.Writer, format, level string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return NewSlog(slog.NewJSONHandler(w, opts))
	}
	return NewSlog(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &SlogLogger{inner: l.inner.With(attrs(fields)...)}
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	l.inner.Log(context.Background(), level, msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, slog.String(f.Key, err.Error()))
			continue
		}
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
