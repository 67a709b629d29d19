package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

type tuteService interface {
	SyncAssignments(ctx context.Context, req service.SyncAssignmentsRequest) (*service.SyncAssignmentsResult, error)
	AssignTute(ctx context.Context, req service.AssignTuteRequest) (*service.AssignTuteResult, error)
	MonthAssignments(ctx context.Context, classID, month, grade string) (*models.MonthAssignments, error)
	CreateMaterial(ctx context.Context, actorID string, req service.CreateTuteRequest) (*models.Tute, error)
	ListMaterials(ctx context.Context, filter models.TuteFilter) ([]models.Tute, error)
	GetMaterial(ctx context.Context, id string) (*models.Tute, error)
	UpdateMaterial(ctx context.Context, id string, req service.UpdateTuteRequest) (*models.Tute, error)
	DeleteMaterial(ctx context.Context, id string) error
}

// TuteHandler serves the tute material and assignment endpoints.
type TuteHandler struct {
	service tuteService
}

// NewTuteHandler constructs the handler.
func NewTuteHandler(service tuteService) *TuteHandler {
	return &TuteHandler{service: service}
}

// Sync handles POST /tutes/sync.
func (h *TuteHandler) Sync(c *gin.Context) {
	var req service.SyncAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.service.SyncAssignments(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Skipped {
		response.Ack(c, "student not enrolled; assignments unchanged")
		return
	}
	response.Ack(c, "assignments updated")
}

// Assign handles POST /tutes/assign.
func (h *TuteHandler) Assign(c *gin.Context) {
	var req service.AssignTuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.service.AssignTute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(result.Skipped) > 0 {
		response.Ack(c, "tute assigned", map[string]interface{}{"skipped": result.Skipped})
		return
	}
	response.Ack(c, "tute assigned")
}

// Assignments handles GET /tutes/assignments.
func (h *TuteHandler) Assignments(c *gin.Context) {
	result, err := h.service.MonthAssignments(c.Request.Context(), c.Query("classId"), c.Query("month"), c.Query("grade"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Create handles POST /tutes.
func (h *TuteHandler) Create(c *gin.Context) {
	claims, err := actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateTuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	tute, err := h.service.CreateMaterial(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tute)
}

// List handles GET /tutes.
func (h *TuteHandler) List(c *gin.Context) {
	filter := models.TuteFilter{
		Grade: c.Query("grade"),
		Month: c.Query("month"),
	}

	tutes, err := h.service.ListMaterials(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tutes, map[string]interface{}{"count": len(tutes)})
}

// Get handles GET /tutes/:id.
func (h *TuteHandler) Get(c *gin.Context) {
	tute, err := h.service.GetMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tute)
}

// Update handles PUT /tutes/:id.
func (h *TuteHandler) Update(c *gin.Context) {
	var req service.UpdateTuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	tute, err := h.service.UpdateMaterial(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tute)
}

// Delete handles DELETE /tutes/:id.
func (h *TuteHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteMaterial(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, "tute deleted")
}
