package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes annotates the nrgin transaction with the caller and
// reports handler errors. It must run after nrgin.Middleware.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}

		if riderID := CallerRiderID(c); riderID != "" {
			txn.AddAttribute("riderId", riderID)
		}
		if requestID := c.GetString(requestIDKey); requestID != "" {
			txn.AddAttribute("requestId", requestID)
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
