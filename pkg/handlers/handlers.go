package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "application/json",
		[]byte(`{
			"message": "clustereye API Server",
			"endpoints": {
				"/api/v1/failures": "Record a failure observation (POST) or list recent failures (GET)",
				"/api/v1/failures/stats": "Aggregated failure counts by type, project, node and image",
				"/api/v1/failures/analysis": "Full pattern analysis with recommendations",
				"/api/v1/solutions": "Record a solution outcome (POST)",
				"/api/v1/solutions/{failureType}": "Best historical solutions for a failure type",
				"/api/v1/remediation/{failureType}": "Rule-based and historical remediation suggestions",
				"/api/v1/tasks/{taskName}/trigger": "Run a background task synchronously (POST only)",
				"/health": "Health check endpoint"
			}
		}`),
	)
}

func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
