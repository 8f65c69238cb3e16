package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	// Test Ctx without a logger in the context
	l1 := Ctx(ctx)
	require.NotNil(t, l1, "Ctx returned nil instead of default logger")
	assert.Equal(t, defaultLogger, l1, "Ctx should return defaultLogger")

	// Create a new logger to test With
	customLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, customLogger, "Failed to create a distinct custom logger for testing")

	// Test With and Ctx with a logger in the context
	ctxWithLogger := With(ctx, customLogger)
	l2 := Ctx(ctxWithLogger)
	require.NotNil(t, l2, "Ctx returned nil, expected custom logger")
	assert.Equal(t, customLogger, l2, "Ctx should return customLogger")
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = WithAttrs(ctx, slog.String("reqPath", "/api/status"))

	Ctx(ctx).InfoContext(ctx, "hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "/api/status", line["reqPath"])
}

func TestDefaultLogLevel(t *testing.T) {
	defer SetDefaultLogLevel(slog.LevelInfo)

	SetDefaultLogLevel(slog.LevelWarn)
	assert.False(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelInfo))
	SetDefaultLogLevel(slog.LevelDebug)
	assert.True(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelDebug))
}

func TestConfigure(t *testing.T) {
	defer SetDefaultLogLevel(slog.LevelInfo)

	level, err := Configure()
	require.NoError(t, err)
	assert.Equal(t, level, defaultLogLevel.Level())
	assert.Equal(t, defaultLogger, slog.Default())
}
