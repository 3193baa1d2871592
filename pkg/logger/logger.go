// Package logger provides the application's structured, levelled logger
// built on log/slog.
//
// WithCtx returns the request-scoped logger installed by the HTTP logger
// middleware, so repository and service code logs with the request_id
// attached without knowing about HTTP:
//
//	log := logger.WithCtx(ctx)
//	log.Error("cart: clear failed", "user_id", userID, "error", err)
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/campusmart/config"
)

var L *slog.Logger

func init() {
	L = slog.New(ConsoleHandler())
	slog.SetDefault(L)
}

// ConsoleHandler returns a JSON handler in production and a text handler
// everywhere else.
func ConsoleHandler() slog.Handler {
	if config.IsProduction() {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// Use replaces the base logger's handler, e.g. to fan out to the MongoDB sink:
//
//	logger.Use(logger.NewMultiHandler(logger.ConsoleHandler(), mongoHandler))
func Use(h slog.Handler) {
	L = slog.New(h)
	slog.SetDefault(L)
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the logger stored in ctx by InjectLogger, or the base
// logger when there is none.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
// Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// ─────────────────────────────────────────────
// Short-hand helpers (use base logger)
// ─────────────────────────────────────────────

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
