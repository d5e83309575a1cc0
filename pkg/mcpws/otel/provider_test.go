package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelink/mcpws/pkg/mcpws/o11y"
)

// Without a configured global OpenTelemetry SDK these instruments are no-ops,
// which is exactly the default a library embedder gets; the tests verify the
// wrappers are safe to use in that mode.
func TestProviderInstruments(t *testing.T) {
	p := NewProvider("mcpws-test", "0.0.1")
	require.NotNil(t, p)
	ctx := context.Background()

	counter := p.Counter("test_counter_total")
	require.NotNil(t, counter)
	counter.Add(ctx, 1)
	counter.Add(ctx, 2, o11y.Label{Key: "opcode", Value: "text"})

	histogram := p.Histogram("test_histogram")
	require.NotNil(t, histogram)
	histogram.Record(ctx, 1.5, o11y.Label{Key: "direction", Value: "sent"})

	gauge := p.Gauge("test_gauge")
	require.NotNil(t, gauge)
	gauge.Set(ctx, 3)
}

func TestProviderSpans(t *testing.T) {
	p := NewProvider("mcpws-test", "0.0.1")
	ctx := context.Background()

	spanCtx, span := p.StartSpan(ctx, "test.operation")
	require.NotNil(t, span)
	assert.NotNil(t, spanCtx)

	span.SetAttributes(o11y.Label{Key: "url", Value: "ws://example.com/mcp/"})
	span.SetStatus(o11y.SpanStatusOK, "")
	span.SetStatus(o11y.SpanStatusError, "boom")
	span.SetStatus(o11y.SpanStatusUnset, "")
	span.End()
}
