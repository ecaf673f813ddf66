package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UnmatchedRoute labels requests that hit no registered admin route, so
// arbitrary paths cannot grow the metric label set.
const UnmatchedRoute = "unmatched"

// StateFunc reports the handshake state at the time of a request.
type StateFunc func() string

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return UnmatchedRoute
}

// AdminRequests logs and counts every admin request. When state is non-nil
// each log line carries the handshake state it was served in.
func AdminRequests(logger zerolog.Logger, state StateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := routeOf(c)
		status := c.Writer.Status()
		RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}
		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed)
		if route == UnmatchedRoute {
			event = event.Str("path", c.Request.URL.Path)
		}
		if state != nil {
			event = event.Str("bridge_state", state())
		}
		event.Msg("admin request")
	}
}
