package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EchoPrometheusMiddleware records http_requests_total and http_request_duration_seconds
// labelled with the matched route pattern rather than the raw path.
func EchoPrometheusMiddleware(serviceName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == "/metrics" || path == "/health" {
				return next(c)
			}

			start := time.Now()
			HttpRequestsInFlight.WithLabelValues(serviceName).Inc()
			defer HttpRequestsInFlight.WithLabelValues(serviceName).Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusFromError(err)
			}
			route := routeLabel(c)
			method := c.Request().Method

			HttpRequestsTotal.WithLabelValues(serviceName, method, route, strconv.Itoa(status)).Inc()
			HttpRequestDuration.WithLabelValues(serviceName, method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func RecordAuthorization(gate, outcome string) {
	AuthorizationDecisions.WithLabelValues(gate, outcome).Inc()
}

func RecordValidationFailure(route string) {
	ValidationFailures.WithLabelValues(route).Inc()
}

func routeLabel(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}
	return "unmatched"
}

func statusFromError(err error) int {
	type statusCoder interface{ StatusCode() int }
	switch e := err.(type) {
	case *echo.HTTPError:
		return e.Code
	case statusCoder:
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}
