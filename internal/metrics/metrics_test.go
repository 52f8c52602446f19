package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FlowStarted("google")
	m.FlowFailed("google", "denied")
	m.SessionResolved("valid")
	m.SweepRemoved("sessions", 3)
	require.NoError(t, m.Register(prometheus.NewCounter(prometheus.CounterOpts{Name: "x"})))

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	require.NotNil(t, m.WithMetrics(h))
}

func TestCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.FlowStarted("google")
	m.FlowStarted("google")
	m.FlowFailed("twitter", "invalid_state")
	m.SweepRemoved("flows", 0)
	m.SweepRemoved("flows", 4)

	require.Equal(t, 2.0, testutil.ToFloat64(m.flowsStarted.WithLabelValues("google")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.flowsFailed.WithLabelValues("twitter", "invalid_state")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.sweepRemoved.WithLabelValues("flows")))
}

func TestWithMetrics_UsesRoutePattern(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.WithMetrics)
	r.Get("/login/{provider}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login/google", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/login/{provider}", "303")))

	rr = httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.True(t, strings.Contains(rr.Body.String(), "http_requests_total"))
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "/", normalizePath(""))
	require.Equal(t, "/protected/profile", normalizePath("/protected/profile?x=1"))
	require.Equal(t, "/users/:param", normalizePath("/users/123"))
	require.Equal(t, "/s/:param", normalizePath("/s/AbCdEfGhIjKlMnOpQrStUvWxYz"))
}
