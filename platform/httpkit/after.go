package httpkit

import (
	"intervention_backend/platform/deferred"

	"github.com/gin-gonic/gin"
)

// AfterResponse installs a deferred.Queue on every request and starts the
// queued tasks once the rest of the handler chain has returned, so work
// registered by services begins only after the response is composed.
func AfterResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, queue := deferred.WithQueue(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Written() {
			c.Writer.Flush()
		}
		queue.Flush(ctx)
	}
}
