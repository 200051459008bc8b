// Package logger builds the process-wide slog.Logger from configuration.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"chloe-bot/internal/infra/config"
)

// New builds a logger for the configured level, format, and output target.
// The returned closer releases the output file when one was opened; defer it.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	out, closer, err := output(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("log output %q: %w", cfg.Output, err)
	}

	lvl := level(cfg.Level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		// Source locations are only worth the noise when debugging.
		AddSource: lvl == slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closer, nil
}

func level(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// output resolves the configured target. Anything that is not stdout or
// stderr is treated as a file path and opened for append.
func output(target string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(target) {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
