package server

import (
	"io"
	"log/slog"
	"strings"
)

const logLevelNone = "none"

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case logLevelNone:
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger builds a text logger writing to w at the named level. The level
// "none" discards everything; unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if strings.EqualFold(strings.TrimSpace(level), logLevelNone) || w == nil {
		return slog.New(slog.DiscardHandler)
	}
	lvl, _ := parseLogLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
