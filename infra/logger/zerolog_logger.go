package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts rs/zerolog to the core Logger interface. Every
// entry carries a component field so engine, solver and sink logs can be
// told apart in a shared stream.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a logger for the named component. APP_ENV=dev
// selects the human-readable console writer; anything else emits JSON
// for collection.
func NewZerologLogger(component string) Logger {
	z := zerolog.New(writerForEnv()).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func writerForEnv() io.Writer {
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
