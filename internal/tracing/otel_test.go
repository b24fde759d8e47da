package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOpenTelemetry(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("weave-test"))
	// Repeated init is a no-op.
	require.NoError(t, InitOpenTelemetry("weave-test"))

	ctx, span := StartSpan(context.Background(), "test", "test.operation")
	assert.True(t, span.SpanContext().IsValid(), "spans record once the provider is installed")
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	require.NoError(t, ShutdownOpenTelemetry(context.Background()))
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetRunID(ctx))

	other := NewRequestContext(context.Background())
	assert.NotEqual(t, GetTraceID(ctx), GetTraceID(other))
}
