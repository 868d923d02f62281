package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogenv "github.com/cbrewster/slog-env"
	"github.com/google/uuid"
)

type ctxKey struct{}

// Init installs the process-wide logger. GO_LOG, when set, overrides level
// (e.g. GO_LOG=debug) without a redeploy of LOG_LEVEL.
func Init(service, level, appEnv string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var handler slog.Handler
	if appEnv == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	handler = slogenv.NewHandler(handler, slogenv.WithDefaultLevel(parseLevel(level)))

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithPayment returns a context whose logger carries the payment id.
func WithPayment(ctx context.Context, paymentID uuid.UUID) (context.Context, *slog.Logger) {
	l := FromContext(ctx).With("payment_id", paymentID)
	return WithLogger(ctx, l), l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
