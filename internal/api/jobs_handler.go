package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marketpulse/scheduler/internal/database"
	"github.com/marketpulse/scheduler/internal/domain"
	"github.com/marketpulse/scheduler/internal/logger"
)

const (
	defaultListLimit = 50
	maxListLimit      = 500
)

// JobsHandler implements the job CRUD and action endpoints.
type JobsHandler struct {
	store     Store
	scheduler Scheduler
	log       logger.Interface
}

// NewJobsHandler builds a JobsHandler.
func NewJobsHandler(store Store, scheduler Scheduler, log logger.Interface) *JobsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &JobsHandler{store: store, scheduler: scheduler, log: log}
}

// Create handles POST /scheduler/jobs.
func (h *JobsHandler) Create(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	job, deps, err := req.toJob()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, d := range deps {
		cyclic, err := h.store.WouldCreateCycle(c.Request.Context(), job.JobID, d.DependsOnJobID)
		if err != nil {
			h.log.Error("api: dependency cycle check failed", "job_id", job.JobID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate dependencies"})
			return
		}
		if cyclic {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dependency would create a cycle"})
			return
		}
	}

	if err := h.store.CreateJobWithDependencies(c.Request.Context(), job, deps); err != nil {
		h.log.Error("api: failed to create job", "job_id", job.JobID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create job", "details": err.Error()})
		return
	}

	// execute_now jobs are acknowledged without ever touching the timer
	// wheel; everything else is installed.
	if job.TriggerType == domain.TriggerExecuteNow {
		if _, err := h.store.UpdateJob(c.Request.Context(), job.JobID, map[string]any{"status": domain.JobStatusActive}); err != nil {
			h.log.Error("api: failed to activate execute_now job", "job_id", job.JobID, "error", err)
		} else {
			job.Status = domain.JobStatusActive
		}
		c.JSON(http.StatusCreated, job)
		return
	}

	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler unavailable"})
		return
	}
	if err := h.scheduler.AddFromStore(c.Request.Context(), job.JobID); err != nil {
		h.log.Error("api: failed to install job in scheduler", "job_id", job.JobID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler unavailable"})
		return
	}

	created, err := h.store.GetJob(c.Request.Context(), job.JobID)
	if err != nil {
		c.JSON(http.StatusCreated, job)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List handles GET /scheduler/jobs.
func (h *JobsHandler) List(c *gin.Context) {
	params := database.ListJobsParams{
		Status:    c.Query("status"),
		AssetType: c.Query("asset_type"),
		Limit:     parseIntQuery(c, "limit", defaultListLimit, maxListLimit),
		Offset:    parseIntQuery(c, "offset", 0, 0),
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), params)
	if err != nil {
		h.log.Error("api: failed to list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Get handles GET /scheduler/jobs/{id}.
func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Update handles PUT /scheduler/jobs/{id}.
func (h *JobsHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var fields UpdateJobRequest
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	job, err := h.store.UpdateJob(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.scheduler != nil {
		if err := h.scheduler.UpdateInScheduler(c.Request.Context(), id); err != nil {
			h.log.Error("api: failed to propagate update to scheduler", "job_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, job)
}

// Delete handles DELETE /scheduler/jobs/{id}.
func (h *JobsHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.DeleteJob(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.log.Error("api: failed to delete job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}

	if h.scheduler != nil {
		if err := h.scheduler.Remove(id); err != nil {
			h.log.Error("api: failed to remove job from scheduler", "job_id", id, "error", err)
		}
	}

	c.Status(http.StatusNoContent)
}

// Pause handles POST /scheduler/jobs/{id}/pause.
func (h *JobsHandler) Pause(c *gin.Context) {
	h.delegateAction(c, func(ctx *gin.Context, id string) error {
		return h.scheduler.Pause(ctx.Request.Context(), id)
	})
}

// Resume handles POST /scheduler/jobs/{id}/resume.
func (h *JobsHandler) Resume(c *gin.Context) {
	h.delegateAction(c, func(ctx *gin.Context, id string) error {
		return h.scheduler.Resume(ctx.Request.Context(), id)
	})
}

// delegateAction runs a scheduler action then returns the refreshed job.
func (h *JobsHandler) delegateAction(c *gin.Context, action func(*gin.Context, string) error) {
	id := c.Param("id")
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler unavailable"})
		return
	}
	if err := action(c, id); err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Trigger handles POST /scheduler/jobs/{id}/trigger. It is fire-and-forget
// from the caller's perspective: the handler only waits for
// trigger_now to accept the request, not for the execution to finish.
func (h *JobsHandler) Trigger(c *gin.Context) {
	id := c.Param("id")
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler unavailable"})
		return
	}
	if err := h.scheduler.TriggerNow(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "job_id": id})
}

// ListExecutions handles GET /scheduler/jobs/{id}/executions.
func (h *JobsHandler) ListExecutions(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.store.GetJob(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	limit := parseIntQuery(c, "limit", defaultListLimit, maxListLimit)
	offset := parseIntQuery(c, "offset", 0, 0)

	execs, err := h.store.ListExecutions(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.log.Error("api: failed to list executions", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list executions"})
		return
	}

	c.JSON(http.StatusOK, execs)
}

func parseIntQuery(c *gin.Context, key string, fallback, max int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
