// Package metrics agrupa las métricas Prometheus del servicio.
//
// Un *Metrics nil es válido: todos los métodos son no-op. Esto permite
// construir servicios en tests sin registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contiene los collectors del flujo de login, sesiones y HTTP.
type Metrics struct {
	reg prometheus.Registerer
	gat prometheus.Gatherer

	flowsStarted      *prometheus.CounterVec
	flowsCompleted    *prometheus.CounterVec
	flowsFailed       *prometheus.CounterVec
	sessionsCreated   prometheus.Counter
	sessionsResolved  *prometheus.CounterVec
	sessionsInvalid   prometheus.Counter
	sweepRemoved      *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInflight      *prometheus.GaugeVec
}

// New crea y registra los collectors. Con reg nil usa un registry propio.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg: reg,
		gat: reg,
		flowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_flows_started_total",
			Help: "Logins iniciados por provider",
		}, []string{"provider"}),
		flowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_flows_completed_total",
			Help: "Logins completados con sesión emitida",
		}, []string{"provider"}),
		flowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_flows_failed_total",
			Help: "Logins fallidos por provider y motivo",
		}, []string{"provider", "reason"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_created_total",
			Help: "Sesiones creadas",
		}),
		sessionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sessions_resolved_total",
			Help: "Resoluciones de sesión por resultado",
		}, []string{"result"}), // result: valid|absent|expired|error
		sessionsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_invalidated_total",
			Help: "Sesiones invalidadas por logout",
		}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sweep_removed_total",
			Help: "Filas borradas por el sweeper",
		}, []string{"kind"}), // kind: flows|sessions
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_provider_request_duration_seconds",
			Help:    "Latencia de llamadas al provider por etapa",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "stage"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
	}

	for _, c := range []prometheus.Collector{
		m.flowsStarted, m.flowsCompleted, m.flowsFailed,
		m.sessionsCreated, m.sessionsResolved, m.sessionsInvalid,
		m.sweepRemoved, m.providerLatency,
		m.httpRequestsTotal, m.httpDuration, m.httpInflight,
	} {
		if err := m.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register registra un collector extra, ignorando duplicados.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	if err := m.reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler expone /metrics para este registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gat, promhttp.HandlerOpts{})
}

func (m *Metrics) FlowStarted(provider string) {
	if m != nil {
		m.flowsStarted.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) FlowCompleted(provider string) {
	if m != nil {
		m.flowsCompleted.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) FlowFailed(provider, reason string) {
	if m != nil {
		m.flowsFailed.WithLabelValues(provider, reason).Inc()
	}
}

func (m *Metrics) ProviderCall(provider, stage string, seconds float64) {
	if m != nil {
		m.providerLatency.WithLabelValues(provider, stage).Observe(seconds)
	}
}

func (m *Metrics) SessionCreated() {
	if m != nil {
		m.sessionsCreated.Inc()
	}
}

func (m *Metrics) SessionResolved(result string) {
	if m != nil {
		m.sessionsResolved.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SessionInvalidated() {
	if m != nil {
		m.sessionsInvalid.Inc()
	}
}

func (m *Metrics) SweepRemoved(kind string, n int) {
	if m != nil && n > 0 {
		m.sweepRemoved.WithLabelValues(kind).Add(float64(n))
	}
}
