package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMetricsExposedThroughHandler(t *testing.T) {
	p, err := Setup(Options{ServiceName: "test", MetricsEnabled: true})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	counter, err := p.Meter("test").Int64Counter("avatar_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NotNil(t, p.MetricsHandler())
	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "avatar_test_events_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDisabledSignals(t *testing.T) {
	p, err := Setup(Options{ServiceName: "test"})
	require.NoError(t, err)

	assert.Nil(t, p.MetricsHandler())
	assert.NotNil(t, p.Meter("x"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(Options{ServiceName: "test", TracingEnabled: true, TraceOutput: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
}
