package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kweiss/applyflow/internal/api/middleware"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/repository"
)

// JobHandler exposes read-only access to tracked job applications.
type JobHandler struct {
	repo *repository.JobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - repo: job record repository.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(repo *repository.JobRepository) *JobHandler {
	return &JobHandler{repo: repo}
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	status := domain.JobStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.repo.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id. The id is the numeric record ID or,
// when not numeric, the job's primary identifier.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job ID is required",
		})
		return
	}

	var (
		job *domain.JobRecord
		err error
	)
	if numeric, convErr := strconv.ParseUint(id, 10, 32); convErr == nil {
		job, err = h.repo.GetByID(c.Request.Context(), uint(numeric))
	} else {
		job, err = h.repo.GetByPrimaryID(c.Request.Context(), id)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetStats handles GET /api/v1/stats, returning job counts per status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) GetStats(c *gin.Context) {
	counts, err := h.repo.StatusCounts(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to compute stats")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute stats: " + err.Error(),
		})
		return
	}

	var total int64
	byStatus := make(map[string]int64, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"by_status": byStatus,
	})
}
