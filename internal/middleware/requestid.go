package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/routebind/internal/util"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for request ID.
	RequestIDKey = "requestID"
)

// RequestID returns a middleware that reuses the incoming X-Request-ID or
// generates one, and stores it in the gin context, the request context
// and the response headers.
func RequestID() gin.HandlerFunc {
	return RequestIDWithGenerator(func() string { return uuid.New().String() })
}

// RequestIDWithGenerator returns a RequestID middleware using a custom
// ID generator.
func RequestIDWithGenerator(generator func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = generator()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(util.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID from the context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}

// SetRoute records the route path that served the request.
func SetRoute(c *gin.Context, route string) {
	c.Request = c.Request.WithContext(util.ContextWithRoutePath(c.Request.Context(), route))
}

// GetRoute returns the route path recorded with SetRoute, the gin route
// template, or "unmatched".
func GetRoute(c *gin.Context) string {
	if route := util.RoutePathFromContext(c.Request.Context()); route != "" {
		return route
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
