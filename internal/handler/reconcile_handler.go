package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/service"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

type reconcileService interface {
	Run(ctx context.Context, req service.ReconcileRequest) (*dto.ReconcileReport, error)
}

// ReconcileHandler triggers an on-demand repair pass.
type ReconcileHandler struct {
	service reconcileService
}

// NewReconcileHandler builds a new handler.
func NewReconcileHandler(service reconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: service}
}

// Run godoc
// @Summary Reconcile the queue against the loads
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reconcile [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	reason := "manual"
	if claims := claimsFromContext(c); claims != nil {
		reason = "manual by " + claims.UserID
	}
	report, err := h.service.Run(c.Request.Context(), service.ReconcileRequest{Reason: reason})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
