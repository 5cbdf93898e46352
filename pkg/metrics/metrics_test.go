package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Steps.WithLabelValues("transition").Inc()
	m.SetConnected(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatbot_steps_total{outcome="transition"} 1`)
	assert.Contains(t, string(body), "whatsapp_connected 1")
}

func TestMetrics_Isolated(t *testing.T) {
	a, b := New(), New()
	a.Inbound.WithLabelValues("processed").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.Inbound.WithLabelValues("processed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Inbound.WithLabelValues("processed")))

	b.SetConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(b.GatewayConnected))
}
