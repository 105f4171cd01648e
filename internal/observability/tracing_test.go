package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{
		ServiceName: "test",
		Enabled:     false,
	})
	require.NoError(t, err)

	ctx, span := tracer.StartSpan(context.Background(), "test-span")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AlwaysOnSampler", createSampler(1.0).Description())
	assert.Equal(t, "AlwaysOnSampler", createSampler(2.0).Description())
	assert.Equal(t, "AlwaysOffSampler", createSampler(0).Description())
	assert.Contains(t, createSampler(0.5).Description(), "TraceIDRatioBased")
}
