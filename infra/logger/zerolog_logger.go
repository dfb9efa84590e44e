package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger implements Logger on top of rs/zerolog. Every line carries a
// component field so the emitting subsystem can be filtered on.
type zerologLogger struct {
	z zerolog.Logger
}

// NewZerologLogger builds a component-scoped logger. APP_ENV=dev switches to
// the human-readable console writer; anything else emits JSON. LOG_LEVEL
// lowers or raises the threshold, defaulting to info.
func NewZerologLogger(component string) Logger {
	out := zerolog.New(os.Stdout)
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	return &zerologLogger{
		z: out.Level(level).With().Timestamp().Str("component", component).Logger(),
	}
}

func (l *zerologLogger) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l *zerologLogger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *zerologLogger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l *zerologLogger) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

func (l *zerologLogger) Debugw(msg string, fields map[string]any) {
	l.z.Debug().Fields(fields).Msg(msg)
}
