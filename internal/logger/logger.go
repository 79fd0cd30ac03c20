// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"

	"github.com/dexter-labs/tokentracker/internal/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. In development it renders a
// human-readable console writer; otherwise plain JSON to stdout.
func New(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() && cfg.LogLevel == "" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out zerolog.ConsoleWriter
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
