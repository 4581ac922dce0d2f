package logging

import (
	"context"
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger writing to stdout and returns its handler
// so the caller can later tee it with additional sinks.
func Setup() slog.Handler {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	return handler
}

// Tee returns a handler that delivers every record to all sinks. A failing
// sink does not stop delivery to the others; the first error is reported.
func Tee(sinks ...slog.Handler) slog.Handler {
	return teeHandler{sinks: sinks}
}

type teeHandler struct {
	sinks []slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, s := range t.sinks {
		if !s.Enabled(ctx, record.Level) {
			continue
		}
		if err := s.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.fanout(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.fanout(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (t teeHandler) fanout(wrap func(slog.Handler) slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, len(t.sinks))
	for i, s := range t.sinks {
		sinks[i] = wrap(s)
	}
	return teeHandler{sinks: sinks}
}
