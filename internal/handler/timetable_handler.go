package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableReader interface {
	ClassTimetable(ctx context.Context, className string) (*dto.ClassTimetable, error)
	TeacherLoad(ctx context.Context, teacherID string) (*dto.TeacherLoad, error)
}

type timetableExporter interface {
	ClassTimetable(ctx context.Context, className string, format dto.ExportFormat) (*dto.ExportFile, error)
}

// TimetableHandler serves generated timetables.
type TimetableHandler struct {
	timetables timetableReader
	exports    timetableExporter
	validator  *validator.Validate
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetables timetableReader, exports timetableExporter, validate *validator.Validate) *TimetableHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableHandler{timetables: timetables, exports: exports, validator: validate}
}

// ClassSchedule godoc
// @Summary Get a class timetable
// @Tags Timetable
// @Produce json
// @Param name path string true "Class name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{name}/schedule [get]
func (h *TimetableHandler) ClassSchedule(c *gin.Context) {
	result, err := h.timetables.ClassTimetable(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ExportClassSchedule godoc
// @Summary Download a class timetable
// @Tags Timetable
// @Produce octet-stream
// @Param name path string true "Class name"
// @Param format query string false "csv, pdf, xlsx or ics" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /classes/{name}/schedule/export [get]
func (h *TimetableHandler) ExportClassSchedule(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unsupported export format"))
		return
	}
	file, err := h.exports.ClassTimetable(c.Request.Context(), c.Param("name"), dto.ExportFormat(query.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// TeacherSchedule godoc
// @Summary Get a teacher's week and load
// @Description Daily hours above max_daily_hours are flagged but never enforced.
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/schedule [get]
func (h *TimetableHandler) TeacherSchedule(c *gin.Context) {
	result, err := h.timetables.TeacherLoad(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
