// internal/logging/integration_test.go
package logging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestIntegration_FullLoggingPipeline(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer func() { _ = logger.Sync() }()

	ctx := WithSessionID(context.Background(), "sess_integration_123")
	ctx = WithRequestID(ctx, "req_456")

	logger.Trace(ctx, "trace message", zap.String("detail", "ultra-verbose"))
	logger.Debug(ctx, "debug message", zap.String("cache", "hit"))
	logger.Info(ctx, "info message", zap.Duration("duration", 45*time.Millisecond))
	logger.Warn(ctx, "warn message", zap.Int("retry_attempt", 2))
	logger.Error(ctx, "error message", zap.Error(fmt.Errorf("test error")))

	logger.Info(ctx, "config loaded", RedactedString("graph_password", "super-secret"))

	child := logger.With(zap.String("component", "graphstore"))
	child.Info(ctx, "child log")

	named := logger.Named("subsystem")
	named.Info(ctx, "named log")

	_ = logger.Sync()
}

func TestIntegration_ContextFieldInjection(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithSessionID(context.Background(), "sess_123")
	tl.Info(ctx, "request", zap.String("method", "GET"))

	tl.AssertLogged(t, zapcore.InfoLevel, "request")
	tl.AssertField(t, "request", "session.id", "sess_123")
	tl.AssertField(t, "request", "method", "GET")
}

func TestIntegration_SecretRedaction(t *testing.T) {
	tl := NewTestLogger()

	tl.Info(context.Background(), "auth", RedactedString("credentials", "my-secret-token"))

	tl.AssertLogged(t, zapcore.InfoLevel, "auth")
	tl.AssertNoSecrets(t)
}
