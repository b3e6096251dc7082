package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/observability"
)

func TestTracingHandlerAddsServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "repolens", "scan-42"))

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, `"service":"repolens"`)
	assert.Contains(t, out, `"scan_id":"scan-42"`)
	assert.NotContains(t, out, "trace_id")
}

func TestTracingHandlerGroupsKeepServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "repolens", ""))

	logger.WithGroup("scan").Info("progress", "events", 5)

	out := buf.String()
	assert.Contains(t, out, `"service":"repolens"`)
	assert.Contains(t, out, `"scan":{"events":5}`)
}

func TestInitNoopWithoutEndpoint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	providers, err := observability.Init(observability.Config{
		ServiceName: "repolens",
		LogOut:      &buf,
	})
	require.NoError(t, err)

	providers.Logger.Info("started")
	assert.Contains(t, buf.String(), "started")

	require.NoError(t, providers.Shutdown(context.Background()))
}
