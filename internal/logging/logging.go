// Package logging configures structured logging for the pipeline.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to a log file. Empty means stderr only.
	FilePath string
}

// Setup initializes logging and returns the logger plus a cleanup function
// closing any open log file. Human-readable output goes to stderr when it is
// a terminal; the optional log file always receives JSON.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	cleanup := func() {}

	var stderrHandler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	}

	if cfg.FilePath == "" {
		return slog.New(stderrHandler), cleanup, nil
	}

	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	cleanup = func() { _ = f.Close() }
	handler := slog.NewJSONHandler(f, opts)
	return slog.New(newTeeHandler(stderrHandler, handler)), cleanup, nil
}

// SetupDefault sets up logging and installs it as the default logger.
func SetupDefault(level string) (*slog.Logger, func(), error) {
	logger, cleanup, err := Setup(Config{Level: level})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
