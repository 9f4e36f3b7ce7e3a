package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with the action-oriented API used across the
// services: one structured JSON line per call, "action" as the message.
type Logger struct{ zl zerolog.Logger }

func New(service string) *Logger {
	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
	return &Logger{zl: zl}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(action)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Msg(action)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.zl.Error().Err(err).Fields(fields).Msg(action)
}
