package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/app"
)

// Health handles GET /health: 200 if every registered check passes,
// 503 otherwise.
func Health(c *gin.Context) {
	a := app.FromContext(c)
	if a == nil {
		RespondError(c, "app not configured on context", http.StatusInternalServerError)
		return
	}

	summary := a.Health.Check(c.Request.Context())
	status := http.StatusOK
	if !summary.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, summary)
}

// Metrics handles GET /metrics: a JSON snapshot of every counter/
// histogram C10 tracks, since no Prometheus exposition library is
// wired.
func Metrics(c *gin.Context) {
	a := app.FromContext(c)
	if a == nil {
		RespondError(c, "app not configured on context", http.StatusInternalServerError)
		return
	}

	points, err := a.Meter.Snapshot(c.Request.Context())
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, gin.H{"metrics": points})
}
