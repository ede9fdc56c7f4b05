package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// RideAttributes tags the request's New Relic transaction with the ride it
// concerns. It must run after nrgin.Middleware; without a transaction it does
// nothing.
func RideAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if rideID := c.Param("id"); rideID != "" {
				txn.AddAttribute("ride.id", rideID)
			}
			if riderID := c.Query("rider_id"); riderID != "" {
				txn.AddAttribute("rider.id", riderID)
			}
		}

		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
