// Package debug carries the --debug switch through contexts and configures slog.
package debug

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

type contextKey struct{}

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(contextKey{}).(bool); ok {
		return v
	}
	return false
}

// NewLogger returns a text logger writing to w, at debug level when enabled
// and warn level otherwise.
func NewLogger(w io.Writer, enabled bool) *slog.Logger {
	level := slog.LevelWarn
	if enabled {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetupLogger installs the stderr logger as the slog default.
func SetupLogger(enabled bool) {
	slog.SetDefault(NewLogger(os.Stderr, enabled))
}

// CookieNames lists cookie names for logging. Values are session secrets and
// never logged.
func CookieNames(cookies []*http.Cookie) string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return strings.Join(names, ",")
}
