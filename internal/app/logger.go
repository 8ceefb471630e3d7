package app

import (
	"fmt"
	"io"
	"log/slog"
)

// newLogger creates and configures a new slog.Logger instance. It does not
// set the global logger, allowing for isolated logger instances. The flag
// layer validates level and format strings before they reach here; an
// unknown value is a startup error, not something to silently default.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		panic(fmt.Sprintf("unknown log level %q", levelStr))
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	switch formatStr {
	case "json", "":
		handler = slog.NewJSONHandler(outW, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(outW, handlerOpts)
	default:
		panic(fmt.Sprintf("unknown log format %q", formatStr))
	}

	return slog.New(handler)
}
