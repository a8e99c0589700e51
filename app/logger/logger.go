// Package logger builds the zerolog root logger for the service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"postsapi/app/config"
)

// New returns a logger writing to stderr: human readable in development,
// JSON everywhere else.
func New(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.IsDevelopment() {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(w, cfg.Log.Level).
		With().
		Str("env", cfg.Env).
		Logger()
}

// NewWithWriter returns a timestamped logger at the given level. An unknown
// level falls back to info.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
