package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

func TestWithCtxFallsBackToBase(t *testing.T) {
	assert.Same(t, logger.L, logger.WithCtx(context.Background()))
}

func TestWithCtxReturnsInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLog := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "abc123")

	ctx := logger.InjectLogger(context.Background(), reqLog)
	logger.WithCtx(ctx).Info("cart cleared")

	assert.Contains(t, buf.String(), "request_id=abc123")
	assert.Contains(t, buf.String(), "cart cleared")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := logger.NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h).With("component", "test")

	log.Info("only first")
	log.Error("both")

	assert.Contains(t, a.String(), "only first")
	assert.Contains(t, a.String(), "both")
	assert.NotContains(t, b.String(), "only first")
	assert.Contains(t, b.String(), "component=test")
}
