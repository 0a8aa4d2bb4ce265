package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/middleware"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

type historyService interface {
	View() models.HistoryView
	Undo(ctx context.Context, actor string) (*dto.CommandResponse, error)
	Redo(ctx context.Context, actor string) (*dto.CommandResponse, error)
}

// HistoryHandler exposes the shared undo/redo stack.
type HistoryHandler struct {
	service historyService
}

// NewHistoryHandler builds a new handler.
func NewHistoryHandler(service historyService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// List godoc
// @Summary List recorded actions and the undo cursor
// @Tags History
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.View(), middleware.ExtractMeta(c))
}

// Undo godoc
// @Summary Undo the most recent action
// @Tags History
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /history/undo [post]
func (h *HistoryHandler) Undo(c *gin.Context) {
	res, err := h.service.Undo(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, middleware.ExtractMeta(c))
}

// Redo godoc
// @Summary Redo the next undone action
// @Tags History
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /history/redo [post]
func (h *HistoryHandler) Redo(c *gin.Context) {
	res, err := h.service.Redo(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, middleware.ExtractMeta(c))
}
