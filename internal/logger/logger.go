package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds the root logger. Format "console" switches to the human readable writer.
func New(opts Options) zerolog.Logger {
	var out io.Writer = opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", "storefront").
		Logger().
		Level(ParseLevel(opts.Level))
}

func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// From returns the request scoped logger, falling back to the global one.
func From(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return zerolog.Ctx(ctx)
}

// Component returns a child of the context logger tagged with the component name.
func Component(ctx context.Context, name string) zerolog.Logger {
	return From(ctx).With().Str("component", name).Logger()
}

// WithFields attaches fields to the context logger and returns the new context.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	lg := From(ctx).With().Fields(fields).Logger()
	return lg.WithContext(ctx)
}
