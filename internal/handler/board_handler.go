package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

type boardService interface {
	Snapshot(ctx context.Context) (*dto.BoardSnapshot, error)
	Subscribe() (<-chan dto.BoardSnapshot, func())
	Countdown(ctx context.Context, loadID string) (*engine.Countdown, error)
}

const boardKeepAlive = 15 * time.Second

// BoardHandler serves the countdown board.
type BoardHandler struct {
	service boardService
}

// NewBoardHandler builds a new handler.
func NewBoardHandler(service boardService) *BoardHandler {
	return &BoardHandler{service: service}
}

// Snapshot godoc
// @Summary Current countdown board
// @Tags Board
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /board [get]
func (h *BoardHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// Countdown godoc
// @Summary Countdown for one load
// @Tags Board
// @Produce json
// @Param id path string true "Load ID"
// @Success 200 {object} response.Envelope
// @Router /loads/{id}/countdown [get]
func (h *BoardHandler) Countdown(c *gin.Context) {
	cd, err := h.service.Countdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cd)
}

// Stream godoc
// @Summary Stream board snapshots as server-sent events
// @Tags Board
// @Produce text/event-stream
// @Success 200 {string} string "board events"
// @Router /board/stream [get]
func (h *BoardHandler) Stream(c *gin.Context) {
	updates, cancel := h.service.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	keepAlive := time.NewTicker(boardKeepAlive)
	defer keepAlive.Stop()
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("board", snapshot)
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}
