// internal/logger/logger.go

// Package logger builds the service's slog logger: coloured console output
// through tint, or JSON, optionally teed into a rotated log file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	level   slog.Level
	format  string
	file    string
	out     io.Writer
	noColor bool
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option { return func(o *options) { o.level = level } }

// WithFormat selects "text" (tint) or "json" output.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithFile additionally writes JSON records to a rotated file.
func WithFile(path string) Option { return func(o *options) { o.file = path } }

// WithOutput replaces stderr as the console destination.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithoutColor disables ANSI colours on the console.
func WithoutColor() Option { return func(o *options) { o.noColor = true } }

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New creates the application logger. The "error" key is renamed to "err".
func New(opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, format: "text", out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "error" {
			a.Key = "err"
		}
		return a
	}

	var console slog.Handler
	if o.format == "json" {
		console = slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: o.level, ReplaceAttr: replace})
	} else {
		console = tint.NewHandler(o.out, &tint.Options{
			Level:       o.level,
			TimeFormat:  time.TimeOnly,
			NoColor:     o.noColor,
			ReplaceAttr: replace,
		})
	}

	if o.file == "" {
		return slog.New(console)
	}

	file := slog.NewJSONHandler(&lumberjack.Logger{
		Filename:   o.file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}, &slog.HandlerOptions{Level: o.level, ReplaceAttr: replace})

	return slog.New(fanout{console, file})
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fanout sends every record to all handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
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
