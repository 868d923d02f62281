package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"

	"github.com/josh-kwaku/starbridge/internal/logging"
)

// Logger routes slog output through t.Log so it only shows for failing or
// verbose tests.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slogt.New(t, slogt.Factory(func(w io.Writer) slog.Handler {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}))
}

// Context returns a background context carrying a test logger.
func Context(t *testing.T) context.Context {
	t.Helper()
	return logging.WithLogger(context.Background(), Logger(t))
}
