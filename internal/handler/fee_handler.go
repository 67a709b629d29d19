package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/pkg/datewindow"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

type feeService interface {
	BulkMark(ctx context.Context, actorID string, req service.BulkMarkFeesRequest) (*service.BulkFeeResult, error)
	Create(ctx context.Context, actorID string, req service.CreateFeeRequest) (*models.FeeRecord, error)
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, error)
	Update(ctx context.Context, id string, req service.UpdateFeeRequest) (*models.FeeRecord, error)
	Delete(ctx context.Context, id string) error
	MonthlyHistory(ctx context.Context, classID, month string) (*models.FeeHistory, error)
	ExportHistory(ctx context.Context, classID, month, format string) ([]byte, string, string, error)
}

// FeeHandler serves the fee endpoints.
type FeeHandler struct {
	service feeService
}

// NewFeeHandler constructs the handler.
func NewFeeHandler(service feeService) *FeeHandler {
	return &FeeHandler{service: service}
}

// BulkMark handles POST /fees/bulk.
func (h *FeeHandler) BulkMark(c *gin.Context) {
	claims, err := actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.BulkMarkFeesRequest
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

// Create handles POST /fees.
func (h *FeeHandler) Create(c *gin.Context) {
	claims, err := actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List handles GET /fees. A month filter expands to the calendar month
// window on payment_date.
func (h *FeeHandler) List(c *gin.Context) {
	filter := models.FeeFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Status:    models.FeeStatus(c.Query("status")),
	}

	if month := c.Query("month"); month != "" {
		ref, err := datewindow.ParseMonth(month)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM"))
			return
		}
		start, end := datewindow.Month(ref)
		filter.StartDate = &start
		filter.EndDate = &end
	}

	startDate, err := dateQuery(c, "startDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	if startDate != nil {
		filter.StartDate = startDate
	}

	endDate, err := dateQuery(c, "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	if endDate != nil {
		filter.EndDate = endDate
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Update handles PUT /fees/:id.
func (h *FeeHandler) Update(c *gin.Context) {
	var req service.UpdateFeeRequest
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

// Delete handles DELETE /fees/:id.
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, "fee record deleted")
}

// History handles GET /fees/history.
func (h *FeeHandler) History(c *gin.Context) {
	history, err := h.service.MonthlyHistory(c.Request.Context(), c.Query("classId"), c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

// ExportHistory handles GET /fees/history/export.
func (h *FeeHandler) ExportHistory(c *gin.Context) {
	payload, filename, contentType, err := h.service.ExportHistory(c.Request.Context(), c.Query("classId"), c.Query("month"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
