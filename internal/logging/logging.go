// Package logging is the structured logger shared by the station, its
// command surface and the CLI. Every station command logs through a child
// logger tagged with that command's ID.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Field is one structured attribute.
type Field = slog.Attr

func String(key, value string) Field        { return slog.String(key, value) }
func Int(key string, value int) Field       { return slog.Int(key, value) }
func Float(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field     { return slog.Bool(key, value) }
func Any(key string, value any) Field       { return slog.Any(key, value) }

// Err records err's message under "error".
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Logger is the logging surface station code depends on.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config is the `logging` section of the station config.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json or text
	AddSource bool
}

// New returns a slog-backed Logger writing to w.
func New(cfg Config, w io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: levelOf(cfg.Level), AddSource: cfg.AddSource}
	if strings.EqualFold(cfg.Format, "json") {
		return slogger{slog.New(slog.NewJSONHandler(w, opts))}
	}
	return slogger{slog.New(slog.NewTextHandler(w, opts))}
}

// Noop discards everything.
func Noop() Logger { return noopLogger{} }

type slogger struct{ l *slog.Logger }

func (s slogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return slogger{s.l.With(args...)}
}

func (s slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelDebug, msg, fields...)
}

func (s slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelInfo, msg, fields...)
}

func (s slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelWarn, msg, fields...)
}

func (s slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelError, msg, fields...)
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

func levelOf(name string) slog.Level {
	var lvl slog.Level
	if name == "warning" {
		name = "warn"
	}
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type commandIDKey struct{}

// CommandIDFromContext returns the ID of the station command running under
// ctx, or "" outside a command.
func CommandIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(commandIDKey{}).(string)
	return id
}

// WithCommandLogger starts a command scope. A context that already carries
// a command ID keeps it, so nested commands share one ID. The returned
// logger tags every line with command_id.
func WithCommandLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	if base == nil {
		base = Noop()
	}
	id := CommandIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = context.WithValue(ctx, commandIDKey{}, id)
	}
	return ctx, base.With(String("command_id", id))
}
