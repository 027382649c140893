package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app's isolated logger from a validated Config. The
// level string was already parsed by NewConfig, so this only selects the
// handler. The global default logger is left untouched.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}
