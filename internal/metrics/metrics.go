// Package metrics holds the Prometheus instrumentation for the portal.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// Metrics holds all Prometheus metrics for the portal.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	RefreshTotal       *prometheus.CounterVec
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	Authenticated      prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login handshakes by outcome",
			},
			[]string{"result"}, // result=redirect/success/error
		),
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Token refresh ticks by outcome",
			},
			[]string{"result"}, // result=skipped/renewed/failed
		),
		APIRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Outbound bearer requests",
			},
			[]string{"target", "method", "status"},
		),
		APIRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Outbound request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		Authenticated: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_authenticated",
				Help:      "1 while the portal holds an authenticated session",
			},
		),
		HTTPRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Inbound page requests",
			},
			[]string{"route", "status"},
		),
	}
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.Authenticated.Set(1)
		return
	}
	m.Authenticated.Set(0)
}

func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// APIObserver returns a callback for apiclient.Client.Observer labelled with target.
func (m *Metrics) APIObserver(target string) func(method string, status int, elapsed time.Duration) {
	return func(method string, status int, elapsed time.Duration) {
		if m == nil {
			return
		}
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		m.APIRequestsTotal.WithLabelValues(target, method, label).Inc()
		m.APIRequestDuration.WithLabelValues(target).Observe(elapsed.Seconds())
	}
}
