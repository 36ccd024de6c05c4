// Package logging configures the application's structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level    string
	Format   string
	FilePath string // when set, logs rotate via lumberjack instead of stderr
}

// New builds a slog.Logger from cfg. The returned closer owns the rotating
// file writer when file output is configured; callers should Close it on
// shutdown. It is nil for stderr output.
func New(cfg Config) (*slog.Logger, io.Closer) {
	var writer io.Writer = os.Stderr
	var closer io.Closer

	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

// ValidLevel reports whether s names a supported log level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat reports whether s names a supported log format.
func ValidFormat(s string) bool {
	return s == "json" || s == "text"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
