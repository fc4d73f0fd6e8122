package tracing

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, testLogger)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid(), "noop provider yields invalid span contexts")
	span.End()
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		ServiceName: "zeitsat-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, testLogger)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "tracker.poll")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, testLogger)
	assert.Contains(t, buf.String(), "tracker.poll")
	assert.Contains(t, buf.String(), "zeitsat-test")

	// Leave later tests with a noop provider.
	_, err = Init(context.Background(), Config{}, testLogger)
	require.NoError(t, err)
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, testLogger)
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}
