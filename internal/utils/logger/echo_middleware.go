package logger

import (
	"io"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// NewAccessLog builds the structured logger used for HTTP access lines.
func NewAccessLog(serviceName string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// RequestLogger writes one JSON line per request. Client errors log at warn, server errors at error.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let the error handler write the response so the status below is final
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			status := res.Status

			event := log.Info()
			if status >= 500 {
				event = log.Error()
			} else if status >= 400 {
				event = log.Warn()
			}

			event = event.
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Str("remote_addr", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Int("status", status).
				Int64("size", res.Size).
				Float64("duration_ms", float64(time.Since(start).Microseconds())/1000)

			if userID, ok := c.Get("userID").(string); ok && userID != "" {
				event = event.Str("user_id", userID)
			}
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("HTTP request")

			return nil
		}
	}
}
