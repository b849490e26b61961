// Package logging wires structured slog output to stderr and to the
// OpenTelemetry log bridge at the same time.
package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	level  = new(slog.LevelVar)
	stderr = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
)

// Setup sets the stderr level and installs the default slog logger.
func Setup(lvl string) {
	level.Set(ParseLevel(lvl))
	slog.SetDefault(New("parley/agent"))
}

// New returns a logger for an instrumentation scope. Records go to stderr
// (filtered by the level given to Setup) and to the global OTel
// LoggerProvider under the scope name.
func New(scope string) *slog.Logger {
	return slog.New(fanout{stderr, otelslog.NewHandler(scope)})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
