package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the chat engine counters.
type Metrics struct {
	registry             *prometheus.Registry
	messagesPosted       *prometheus.CounterVec
	messagesBlocked      *prometheus.CounterVec
	rateLimited          prometheus.Counter
	notificationFailures *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
}

// NewMetrics registers the counters on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donateo",
			Subsystem: "chat",
			Name:      "messages_posted_total",
			Help:      "Messages stored in pickup chats, by kind.",
		}, []string{"kind"}),
		messagesBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donateo",
			Subsystem: "chat",
			Name:      "messages_blocked_total",
			Help:      "Messages rejected by the safety filter, by category.",
		}, []string{"category"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donateo",
			Subsystem: "chat",
			Name:      "rate_limited_total",
			Help:      "Messages rejected because the sender exceeded the rate limit.",
		}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donateo",
			Subsystem: "chat",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be handed to the notification service.",
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donateo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status class.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesPosted,
		m.messagesBlocked,
		m.rateLimited,
		m.notificationFailures,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) MessagePosted(kind string)      { m.messagesPosted.WithLabelValues(kind).Inc() }
func (m *Metrics) MessageBlocked(category string) { m.messagesBlocked.WithLabelValues(category).Inc() }
func (m *Metrics) RateLimited()                   { m.rateLimited.Inc() }
func (m *Metrics) NotificationFailed(typ string)  { m.notificationFailures.WithLabelValues(typ).Inc() }
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
