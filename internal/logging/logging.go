// Package logging builds the zerolog loggers used by the qram binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "QRAM_LOG_LEVEL"
	EnvLogNoColor = "QRAM_LOG_NOCOLOR"
)

var configureOnce sync.Once

// New returns a console logger tagged with app.
func New(app string, out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    os.Getenv(EnvLogNoColor) != "",
	}
	return zerolog.New(output).With().Timestamp().Str("app", app).Logger()
}

// Configure installs the console logger as the global logger and applies the level from the environment, falling back to level.
// Only the first call has an effect.
func Configure(app string, level zerolog.Level) zerolog.Logger {
	configureOnce.Do(func() {
		if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = New(app, os.Stderr)
	})
	return log.Logger
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
