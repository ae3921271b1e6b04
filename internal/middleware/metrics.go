package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives request measurements.
// *observability.Metrics implements it.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, duration time.Duration, respSize int)
	IncrementActiveRequests()
	DecrementActiveRequests()
}

// Metrics returns a middleware that records request counts, latency and
// response sizes labeled by route path. A nil recorder disables it.
func Metrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}

		recorder.IncrementActiveRequests()
		defer recorder.DecrementActiveRequests()

		start := time.Now()
		c.Next()

		recorder.RecordRequest(
			c.Request.Method,
			GetRoute(c),
			c.Writer.Status(),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}
