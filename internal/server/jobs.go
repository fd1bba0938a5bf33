package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tenor/internal/scheduler"
)

// TriggerChargeJob runs one charge pass immediately. Operators use this to
// catch a plan up after an incident instead of waiting for the next tick;
// re-running is safe because recorded payments dedupe.
func (s *Server) TriggerChargeJob(c *gin.Context) {
	summary, err := s.scheduler.Run(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListJobRuns(c *gin.Context) {
	jobType := strings.TrimSpace(c.Query("job_type"))
	if jobType == "" {
		jobType = scheduler.JobTypeChargeFinancingPlans
	}

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	runs, err := s.jobRuns.List(c.Request.Context(), jobType, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}
