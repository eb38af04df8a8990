package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a registry call.
type Timer struct {
	start   time.Time
	metrics *Metrics
	host    string
	op      string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, host, op string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		host:    host,
		op:      op,
	}
}

// Stop stops the timer and records the call with the given result.
func (t *Timer) Stop(result string) {
	t.metrics.RecordRegistryCall(t.host, t.op, result, time.Since(t.start))
}
