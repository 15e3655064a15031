package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"
	"github.com/clustereye/clustereye/pkg/remediation"
	"github.com/clustereye/clustereye/pkg/types"

	"github.com/gin-gonic/gin"
)

type solutionOutcomeRequest struct {
	FailureType string `json:"failure_type" binding:"required"`
	Solution    string `json:"solution" binding:"required"`
	Success     *bool  `json:"success" binding:"required"`
}

// HandleRecordSolution records whether a tried solution worked.
func HandleRecordSolution(c *gin.Context) {
	ctx := c.Request.Context()

	var req solutionOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := getStorage(c).RecordSolution(req.FailureType, req.Solution, *req.Success); err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to record solution outcome: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record solution outcome"})
		return
	}

	result := "failure"
	if *req.Success {
		result = "success"
	}
	metrics.SolutionOutcomesTotal.WithLabelValues(req.FailureType, result).Inc()

	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

// HandleBestSolutions returns the top historical solutions for a failure type.
func HandleBestSolutions(c *gin.Context) {
	ctx := c.Request.Context()
	failureType := c.Param("failureType")

	limit := 3
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	solutions, err := getStorage(c).GetBestSolutions(failureType, limit)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to read best solutions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read best solutions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"failure_type": failureType, "solutions": solutions})
}

// HandleRemediation answers "given failure kind X, what fixes it?".
func HandleRemediation(c *gin.Context) {
	ctx := c.Request.Context()
	engine := c.MustGet("remediationEngine").(*remediation.Engine)
	failureType := c.Param("failureType")

	failureContext := map[string]string{}
	if job := c.Query("job"); job != "" {
		failureContext["job_name"] = job
	}
	if project := c.Query("project"); project != "" {
		failureContext["project"] = project
	}

	suggestion, err := engine.SuggestRemediation(ctx, failureType, failureContext)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Errorf(ctx, "Failed to build remediation suggestion: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build remediation suggestion"})
		return
	}

	if c.Query("format") == "report" {
		c.String(http.StatusOK, remediation.FormatReport(suggestion))
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
