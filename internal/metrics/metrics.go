package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "missions",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	missionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "marketplace",
			Name:      "missions_created_total",
			Help:      "Missions published by clients.",
		},
	)

	missionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "marketplace",
			Name:      "mission_transitions_total",
			Help:      "Mission status transitions.",
		},
		[]string{"to"},
	)

	applications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "marketplace",
			Name:      "applications_total",
			Help:      "Applications submitted by freelances.",
		},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "payments",
			Name:      "status_total",
			Help:      "Payments entering each status.",
		},
		[]string{"status"},
	)

	reviews = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "marketplace",
			Name:      "reviews_total",
			Help:      "Reviews submitted.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missions",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		missionsCreated,
		missionTransitions,
		applications,
		payments,
		reviews,
		logins,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func MissionCreated() { missionsCreated.Inc() }

func MissionTransition(to string) { missionTransitions.WithLabelValues(to).Inc() }

func ApplicationSubmitted() { applications.Inc() }

func PaymentStatus(status string) { payments.WithLabelValues(status).Inc() }

func ReviewSubmitted() { reviews.Inc() }

// Login records an attempt: success, invalid, inactive or throttled.
func Login(outcome string) { logins.WithLabelValues(outcome).Inc() }
