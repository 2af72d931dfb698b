package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer

	shutdown, err := InitTracer(&buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("kbfw/test").Start(context.Background(), "compile")
	span.End()

	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "compile"`)
	assert.Contains(t, buf.String(), ServiceName)
}
