package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel maps a config string to a slog level. "trace" is debug with
// caller information. Unknown values fall back to info.
func ParseLevel(level string) (lvl slog.Level, withCaller bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return slog.LevelDebug, true
	case "debug":
		return slog.LevelDebug, false
	case "warn", "warning":
		return slog.LevelWarn, false
	case "error":
		return slog.LevelError, false
	default:
		return slog.LevelInfo, false
	}
}

// ValidLevel reports whether level is one ParseLevel understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// NewHandler returns a colourised charmbracelet handler for "text" and a
// slog JSON handler for "json".
func NewHandler(format, level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	lvl, withCaller := ParseLevel(level)

	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: withCaller,
		})
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    withCaller,
		Level:           charmlog.Level(lvl),
	})
}
