package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config describes logger runtime configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
}

// NewLogger constructs a zerolog logger writing to stdout.
func NewLogger(cfg Config) zerolog.Logger {
	return New(cfg, os.Stdout)
}

// New constructs a zerolog logger writing to out.
func New(cfg Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	builder := zerolog.New(writer(cfg, out)).Level(level).With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}
	return builder.Logger()
}

// WithCycle tags a logger with the refresh cycle it belongs to.
func WithCycle(logger zerolog.Logger, cycleID string) zerolog.Logger {
	return logger.With().Str("cycle_id", cycleID).Logger()
}

type cycleKey struct{}

// ContextWithCycle attaches a refresh cycle id to ctx.
func ContextWithCycle(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleKey{}, cycleID)
}

// CycleFromContext returns the cycle id attached by ContextWithCycle.
func CycleFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cycleKey{}).(string)
	return id, ok && id != ""
}

// FromContext tags logger with the cycle id carried by ctx, if any.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id, ok := CycleFromContext(ctx); ok {
		return WithCycle(logger, id)
	}
	return logger
}

func writer(cfg Config, out io.Writer) io.Writer {
	if cfg.PrettyPrint || strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: zerolog.TimeFieldFormat,
			NoColor:    out != os.Stdout,
		}
	}
	return out
}
