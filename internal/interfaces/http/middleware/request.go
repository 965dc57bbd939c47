package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses an incoming X-Request-ID or assigns a new one, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// HTTPMetrics receives per-request observations.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	TrackActiveRequest(method string) func()
}

// unmatchedRoute labels requests that hit no route, keeping path
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics records request counts, latency and in-flight requests. The path
// label is the route template, not the raw URL.
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		done := m.TrackActiveRequest(method)
		start := time.Now()

		c.Next()

		done()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		m.RecordHTTPRequest(method, path, c.Writer.Status(), time.Since(start))
	}
}

// BodyLimit caps request bodies at maxBytes. Reads past the limit fail with
// *http.MaxBytesError.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
