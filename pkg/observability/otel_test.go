package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	assert.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers))
}

func TestWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("no span leaves logger untouched", func(t *testing.T) {
		assert.Same(t, logger, WithTraceContext(context.Background(), logger))
	})

	t.Run("recording span adds ids", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		buf.Reset()
		WithTraceContext(ctx, logger).Info("traced")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})
}
