package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/health"
)

// Liveness handles GET /healthz.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns a handler for GET /readyz that reports 503 while any
// backing store is degraded.
func Readiness(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready, results := checker.Ready()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
	}
}
