package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/app"
	"github.com/yourusername/sc-fetch-go/internal/domain"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobMgr *app.JobManager, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobMgr: jobMgr,
		logger: logger,
	}
}

// SubmitJobRequest represents a request to start a fetch job
type SubmitJobRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality string `json:"quality,omitempty"`
}

// SubmitJob handles POST /api/v1/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobMgr.Submit(req.URL, req.Quality)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobMgr.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})

	if stage := c.Query("stage"); stage != "" {
		filters["stage"] = stage
	}
	if kind := c.Query("kind"); kind != "" {
		filters["kind"] = kind
	}

	jobs, err := h.jobMgr.ListJobs(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DownloadArtifact handles GET /api/v1/jobs/:id/download. It streams the
// finished artifact and schedules its deferred removal once served.
func (h *JobHandler) DownloadArtifact(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobMgr.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	switch job.Stage {
	case domain.StageComplete:
	case domain.StageError:
		c.JSON(http.StatusConflict, gin.H{"error": job.ErrorMessage})
		return
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "job not finished", "stage": job.Stage})
		return
	}

	if job.ArtifactPath == "" {
		c.JSON(http.StatusGone, gin.H{"error": "artifact no longer available"})
		return
	}

	contentType := "audio/mpeg"
	if job.Kind == domain.KindPlaylist {
		contentType = "application/zip"
	}
	c.Header("Content-Type", contentType)
	c.FileAttachment(job.ArtifactPath, job.DisplayName)

	h.jobMgr.ScheduleArtifactCleanup(id)
}
