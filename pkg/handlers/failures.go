package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clustereye/clustereye/pkg/analysis"
	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"
	"github.com/clustereye/clustereye/pkg/repository/storage"
	"github.com/clustereye/clustereye/pkg/types"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultWindowDays = 7

func getStorage(c *gin.Context) *storage.Storage {
	return c.MustGet("storage").(*storage.Storage)
}

// daysParam parses the optional "days" query parameter.
func daysParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("days", strconv.Itoa(defaultWindowDays))
	days, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return 0, false
	}
	return days, true
}

// HandleRecordFailure accepts a failure observation from an external monitor.
func HandleRecordFailure(c *gin.Context) {
	ctx := c.Request.Context()

	var obs types.FailureObservation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span := oteltrace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("failure.job", obs.JobName),
		attribute.String("failure.type", obs.FailureType),
	)

	id, isNew, err := getStorage(c).RecordObservation(ctx, &obs)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to record failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record failure"})
		return
	}

	status := http.StatusCreated
	if !isNew {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"id": id, "new": isNew})
}

// HandleListFailures returns recent failures, optionally scoped to a project.
func HandleListFailures(c *gin.Context) {
	ctx := c.Request.Context()

	days, ok := daysParam(c)
	if !ok {
		return
	}
	project := c.Query("project")

	failures, err := getStorage(c).GetRecentFailures(days, project)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to list failures: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
}

// HandleFailureStats returns the windowed GROUP BY aggregations.
func HandleFailureStats(c *gin.Context) {
	ctx := c.Request.Context()

	days, ok := daysParam(c)
	if !ok {
		return
	}

	stats, err := getStorage(c).GetPatternStats(days)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to read pattern stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read pattern stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleAnalysis runs the full pattern analysis on demand.
func HandleAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	analyzer := c.MustGet("analyzer").(*analysis.Analyzer)

	days, ok := daysParam(c)
	if !ok {
		return
	}

	metrics.AnalysisRunsTotal.WithLabelValues("api").Inc()

	result, err := analyzer.AnalyzePatterns(ctx, days)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to analyze patterns: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to analyze patterns"})
		return
	}

	c.JSON(http.StatusOK, result)
}
