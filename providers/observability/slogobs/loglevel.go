package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and is only emitted when explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// GetLogLevelFromEnv returns the log level configured via environment variables.
// It checks STATEGRAPH_LOG_LEVEL first, then falls back to LOG_LEVEL.
// Default: INFO
func GetLogLevelFromEnv() slog.Level {
	level := os.Getenv("STATEGRAPH_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		return slog.LevelInfo
	}

	parsed, err := ParseLogLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using INFO\n", err)
		return slog.LevelInfo
	}
	return parsed
}

// ParseLogLevel parses TRACE, DEBUG, INFO, WARN, WARNING or ERROR (case-insensitive).
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
