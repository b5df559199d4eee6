package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger with a console writer on stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		defaultLogger = zerolog.New(out).With().Timestamp().Logger()
	})
}

// SetLevel adjusts the global log level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// Get returns the initialized default logger. A pointer is returned because
// zerolog's level methods have pointer receivers.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// Info logs an informational message with alternating key/value args.
func Info(msg string, args ...any) {
	Get().Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message with alternating key/value args.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message with alternating key/value args.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(fields(args)).Msg(msg)
}

// Debug logs a debug message with alternating key/value args.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(fields(args)).Msg(msg)
}

// fields converts alternating key/value args into a map zerolog accepts.
// A trailing key with no value is dropped.
func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		m[key] = args[i+1]
	}
	return m
}
