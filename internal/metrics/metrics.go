package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP

// HttpRequestsTotal counts requests by route pattern.
// Labels: service, method, route, status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "route", "status"},
)

var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "route"},
)

var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// Request pipeline

// ValidationFailures counts bodies rejected by schema validation.
var ValidationFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "request_validation_failures_total",
		Help: "Total number of request bodies rejected by schema validation",
	},
	[]string{"route"},
)

// AuthorizationDecisions counts ACL and ownership outcomes.
// Labels: gate (acl, owner), outcome (allowed, denied, error)
var AuthorizationDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authorization_decisions_total",
		Help: "Total number of authorization decisions",
	},
	[]string{"gate", "outcome"},
)

// Auth

var AuthRegistrations = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Total number of user registrations",
	},
)

var AuthLogins = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"status"}, // success, failed
)

var AuthTokensIssued = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Total number of tokens issued",
	},
	[]string{"type"}, // access, refresh
)

var PasswordResetsRequested = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_password_resets_requested_total",
		Help: "Total number of password reset requests",
	},
	[]string{"status"}, // issued, throttled, unknown
)

// Background jobs

var JobsEnqueued = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_enqueued_total",
		Help: "Total number of background jobs enqueued",
	},
	[]string{"type"},
)

var JobsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "Total number of background jobs processed",
	},
	[]string{"type", "status"},
)
