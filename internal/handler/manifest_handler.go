package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/middleware"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

type manifestService interface {
	ListLoads(ctx context.Context) ([]models.Load, error)
	GetLoad(ctx context.Context, id string) (*models.Load, error)
	ListQueue(ctx context.Context) ([]models.QueueEntry, error)
	CreateLoad(ctx context.Context, req dto.CreateLoadRequest) (*dto.ManifestResult, *models.Command, error)
	DeleteLoad(ctx context.Context, loadID string, confirm bool) (*dto.ManifestResult, *models.Command, error)
	ReorderLoads(ctx context.Context, req dto.ReorderLoadsRequest) (*dto.ManifestResult, *models.Command, error)
	Transition(ctx context.Context, loadID string, req dto.TransitionRequest) (*dto.ManifestResult, *models.Command, error)
	ApplyDelay(ctx context.Context, loadID string, req dto.DelayRequest) (*dto.ManifestResult, *models.Command, error)
	AssignToLoad(ctx context.Context, loadID string, req dto.AssignRequest) (*dto.ManifestResult, *models.Command, error)
	AssignGroup(ctx context.Context, loadID string, req dto.AssignGroupRequest) (*dto.ManifestResult, *models.Command, error)
	UpdateAssignment(ctx context.Context, loadID, assignmentID string, req dto.UpdateAssignmentRequest) (*dto.ManifestResult, *models.Command, error)
	MoveAssignment(ctx context.Context, fromLoadID, assignmentID string, req dto.MoveRequest) (*dto.ManifestResult, *models.Command, error)
	MoveGroup(ctx context.Context, fromLoadID, groupID string, req dto.MoveRequest) (*dto.ManifestResult, *models.Command, error)
	ReturnToQueue(ctx context.Context, loadID, assignmentID string) (*dto.ManifestResult, *models.Command, error)
}

type historyRecorder interface {
	Record(ctx context.Context, cmd *models.Command, actor string) *models.Action
}

// ManifestHandler exposes load and queue endpoints. Every successful mutation
// is pushed onto the action history.
type ManifestHandler struct {
	service manifestService
	history historyRecorder
}

// NewManifestHandler builds a new handler.
func NewManifestHandler(service manifestService, history historyRecorder) *ManifestHandler {
	return &ManifestHandler{service: service, history: history}
}

// ListLoads godoc
// @Summary List loads
// @Tags Loads
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loads [get]
func (h *ManifestHandler) ListLoads(c *gin.Context) {
	loads, err := h.service.ListLoads(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loads, middleware.ExtractMeta(c))
}

// GetLoad godoc
// @Summary Get load
// @Tags Loads
// @Produce json
// @Param id path string true "Load ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /loads/{id} [get]
func (h *ManifestHandler) GetLoad(c *gin.Context) {
	load, err := h.service.GetLoad(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, load, middleware.ExtractMeta(c))
}

// ListQueue godoc
// @Summary List waiting students
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue [get]
func (h *ManifestHandler) ListQueue(c *gin.Context) {
	entries, err := h.service.ListQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, middleware.ExtractMeta(c))
}

// CreateLoad godoc
// @Summary Create a building load
// @Tags Loads
// @Accept json
// @Produce json
// @Param payload body dto.CreateLoadRequest false "Load payload"
// @Success 201 {object} response.Envelope
// @Router /loads [post]
func (h *ManifestHandler) CreateLoad(c *gin.Context) {
	var req dto.CreateLoadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid load payload"))
			return
		}
	}
	result, cmd, err := h.service.CreateLoad(c.Request.Context(), req)
	h.respond(c, http.StatusCreated, result, cmd, err)
}

// DeleteLoad godoc
// @Summary Delete a load and return its students to the queue
// @Tags Loads
// @Produce json
// @Param id path string true "Load ID"
// @Param confirm query bool false "Required for completed loads"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /loads/{id} [delete]
func (h *ManifestHandler) DeleteLoad(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.DefaultQuery("confirm", "false"))
	result, cmd, err := h.service.DeleteLoad(c.Request.Context(), c.Param("id"), confirm)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// ReorderLoads godoc
// @Summary Reorder building loads
// @Tags Loads
// @Accept json
// @Produce json
// @Param payload body dto.ReorderLoadsRequest true "Ordered building load IDs"
// @Success 200 {object} response.Envelope
// @Router /loads/reorder [post]
func (h *ManifestHandler) ReorderLoads(c *gin.Context) {
	var req dto.ReorderLoadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reorder payload"))
		return
	}
	result, cmd, err := h.service.ReorderLoads(c.Request.Context(), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// Transition godoc
// @Summary Advance a load through its lifecycle
// @Tags Loads
// @Accept json
// @Produce json
// @Param id path string true "Load ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loads/{id}/transition [post]
func (h *ManifestHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	result, cmd, err := h.service.Transition(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// Delay godoc
// @Summary Delay a load's departure
// @Tags Loads
// @Accept json
// @Produce json
// @Param id path string true "Load ID"
// @Param payload body dto.DelayRequest true "Delay in minutes"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/delay [post]
func (h *ManifestHandler) Delay(c *gin.Context) {
	var req dto.DelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delay payload"))
		return
	}
	result, cmd, err := h.service.ApplyDelay(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// Assign godoc
// @Summary Assign a queued student to a load
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Load ID"
// @Param payload body dto.AssignRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /loads/{id}/assignments [post]
func (h *ManifestHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, cmd, err := h.service.AssignToLoad(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusCreated, result, cmd, err)
}

// AssignGroup godoc
// @Summary Assign every queued member of a group to a load
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Load ID"
// @Param payload body dto.AssignGroupRequest true "Group assignment payload"
// @Success 201 {object} response.Envelope
// @Router /loads/{id}/groups [post]
func (h *ManifestHandler) AssignGroup(c *gin.Context) {
	var req dto.AssignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}
	result, cmd, err := h.service.AssignGroup(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusCreated, result, cmd, err)
}

// SetInstructors godoc
// @Summary Set instructors or flags on an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Load ID"
// @Param assignmentId path string true "Assignment ID"
// @Param payload body dto.UpdateAssignmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/assignments/{assignmentId}/instructors [put]
func (h *ManifestHandler) SetInstructors(c *gin.Context) {
	var req dto.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, cmd, err := h.service.UpdateAssignment(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// Move godoc
// @Summary Move an assignment to another load
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Source load ID"
// @Param assignmentId path string true "Assignment ID"
// @Param payload body dto.MoveRequest true "Target load"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/assignments/{assignmentId}/move [post]
func (h *ManifestHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, cmd, err := h.service.MoveAssignment(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// MoveGroup godoc
// @Summary Move a group to another load
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Source load ID"
// @Param groupId path string true "Group ID"
// @Param payload body dto.MoveRequest true "Target load"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/groups/{groupId}/move [post]
func (h *ManifestHandler) MoveGroup(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, cmd, err := h.service.MoveGroup(c.Request.Context(), c.Param("id"), c.Param("groupId"), req)
	h.respond(c, http.StatusOK, result, cmd, err)
}

// ReturnToQueue godoc
// @Summary Return an assignment to the queue
// @Tags Assignments
// @Produce json
// @Param id path string true "Load ID"
// @Param assignmentId path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/assignments/{assignmentId} [delete]
func (h *ManifestHandler) ReturnToQueue(c *gin.Context) {
	result, cmd, err := h.service.ReturnToQueue(c.Request.Context(), c.Param("id"), c.Param("assignmentId"))
	h.respond(c, http.StatusOK, result, cmd, err)
}

func (h *ManifestHandler) respond(c *gin.Context, status int, result *dto.ManifestResult, cmd *models.Command, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := dto.CommandResponse{Result: result}
	if h.history != nil && cmd != nil {
		payload.Action = h.history.Record(c.Request.Context(), cmd, actorID(c))
	}
	response.JSON(c, status, payload, middleware.ExtractMeta(c))
}
