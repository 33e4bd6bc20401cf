package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

type generationJobs interface {
	Submit(ctx context.Context, req dto.BatchGenerateRequest) (*dto.GenerationJobStatus, error)
	Status(ctx context.Context, jobID string) (*dto.GenerationJobStatus, error)
}

// ScheduleGeneratorHandler exposes timetable generation endpoints.
type ScheduleGeneratorHandler struct {
	service timetableGenerator
	jobs    generationJobs
	enabled bool
}

// NewScheduleGeneratorHandler constructs the handler. When enabled is false
// every endpoint answers 503.
func NewScheduleGeneratorHandler(svc timetableGenerator, jobs generationJobs, enabled bool) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc, jobs: jobs, enabled: enabled}
}

// Generate godoc
// @Summary Generate the weekly timetable of a class
// @Description Places every subject of the class across Monday-Saturday and persists each entry immediately. Existing entries are kept.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Class to generate"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{
		"status": result.Status,
		"passes": result.Passes,
	})
}

// GenerateBatch godoc
// @Summary Queue timetable generation for several classes
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Classes to generate"
// @Success 202 {object} response.Envelope
// @Router /schedule/generate/batch [post]
func (h *ScheduleGeneratorHandler) GenerateBatch(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	status, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// JobStatus godoc
// @Summary Get batch generation status
// @Tags Scheduler
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/jobs/{id} [get]
func (h *ScheduleGeneratorHandler) JobStatus(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	status, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

func (h *ScheduleGeneratorHandler) ensureEnabled(c *gin.Context) bool {
	if h.enabled {
		return true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "timetable scheduler disabled"))
	return false
}
