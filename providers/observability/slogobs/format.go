package slogobs

import (
	"os"
	"strings"
)

// Format represents the output format for log messages.
type Format string

const (
	// FormatText uses slog's key=value text handler.
	FormatText Format = "text"

	// FormatJSON emits one JSON object per record, for log aggregators.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string (case-insensitive). Unknown values fall
// back to FormatText.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// GetFormatFromEnv reads STATEGRAPH_LOG_FORMAT, then LOG_FORMAT.
// Defaults to FormatText.
func GetFormatFromEnv() Format {
	if format := os.Getenv("STATEGRAPH_LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}

	return FormatText
}

func (f Format) String() string {
	return string(f)
}
