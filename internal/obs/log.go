package obs

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerOnce sync.Once
	logger     zerolog.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() zerolog.Logger {
	loggerOnce.Do(func() {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return logger
}

// With returns a child logger tagged with the originating component, so every
// store and service failure carries module + operation context.
func With(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// SetOutputForTests redirects the shared logger. Only intended for test use.
func SetOutputForTests(w io.Writer) {
	loggerOnce.Do(func() {})
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the global log level from its configuration string.
// Unknown values keep the default (info).
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
