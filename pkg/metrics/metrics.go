package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the service. Each instance owns its
// registry so tests can build isolated ones.
type Metrics struct {
	registry *prometheus.Registry

	Inbound          *prometheus.CounterVec
	Steps            *prometheus.CounterVec
	Dispatch         *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Workers          prometheus.Gauge
	GatewayConnected prometheus.Gauge
	Webhooks         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_inbound_messages_total",
			Help: "Inbound messages seen by the chatbot, by result",
		}, []string{"result"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_steps_total",
			Help: "Dialogue steps, by outcome",
		}, []string{"outcome"}),
		Dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbot_dispatch_total",
			Help: "Outbound payloads, by kind and result",
		}, []string{"kind", "result"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatbot_dispatch_duration_seconds",
			Help:    "Duration of outbound sends",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatbot_chat_workers",
			Help: "Per-chat workers currently running",
		}),
		GatewayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whatsapp_connected",
			Help: "1 when the WhatsApp client is connected and logged in",
		}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook deliveries, by event and result",
		}, []string{"event", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Inbound,
		m.Steps,
		m.Dispatch,
		m.DispatchDuration,
		m.Workers,
		m.GatewayConnected,
		m.Webhooks,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.GatewayConnected.Set(1)
		return
	}
	m.GatewayConnected.Set(0)
}
