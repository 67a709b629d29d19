package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

type attendanceService interface {
	BulkMark(ctx context.Context, actorID string, req service.BulkMarkAttendanceRequest) (*service.BulkAttendanceResult, error)
	Mark(ctx context.Context, actorID string, req service.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Update(ctx context.Context, id string, req service.UpdateAttendanceRequest) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) error
	MonthlyHistory(ctx context.Context, classID, month string) (*models.AttendanceHistory, error)
	ExportHistory(ctx context.Context, classID, month, format string) ([]byte, string, string, error)
}

// AttendanceHandler serves the attendance endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// BulkMark handles POST /attendance/bulk.
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	claims, err := actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.BulkMarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.service.BulkMark(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result.Records, map[string]interface{}{"skipped": result.Skipped})
}

// Mark handles POST /attendance.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims, err := actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	record, err := h.service.Mark(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List handles GET /attendance.
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		StudentID: c.Query("student"),
		ClassID:   c.Query("class"),
	}

	sessionDate, err := dateQuery(c, "sessionDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.SessionDate = sessionDate

	startDate, err := dateQuery(c, "startDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.StartDate = startDate

	endDate, err := dateQuery(c, "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.EndDate = endDate

	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Update handles PUT /attendance/:id.
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record)
}

// Delete handles DELETE /attendance/:id.
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, "attendance record deleted")
}

// History handles GET /attendance/history.
func (h *AttendanceHandler) History(c *gin.Context) {
	history, err := h.service.MonthlyHistory(c.Request.Context(), c.Query("classId"), c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

// ExportHistory handles GET /attendance/history/export.
func (h *AttendanceHandler) ExportHistory(c *gin.Context) {
	payload, filename, contentType, err := h.service.ExportHistory(c.Request.Context(), c.Query("classId"), c.Query("month"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
