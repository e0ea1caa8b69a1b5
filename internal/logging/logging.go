// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a logger that writes every record at or above level to out,
// as text or JSON per format, and fans errors out to errOut as JSON.
func New(out, errOut io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var main slog.Handler
	if format == "json" {
		main = slog.NewJSONHandler(out, opts)
	} else {
		main = slog.NewTextHandler(out, opts)
	}
	errHandler := slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(slogmulti.Fanout(main, errHandler))
}
