package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

type periodService interface {
	List(ctx context.Context) ([]models.Period, error)
	Open(ctx context.Context, req dto.OpenPeriodRequest) (*models.Period, error)
	Balances(ctx context.Context, periodID string) (*dto.PeriodBalances, error)
	Close(ctx context.Context, periodID, actor string) (*dto.PeriodBalances, error)
	Statement(ctx context.Context, periodID string) ([]byte, string, error)
	StatementLink(ctx context.Context, periodID string) (*dto.StatementLink, error)
	DownloadStatement(ctx context.Context, token string) ([]byte, string, error)
}

// PeriodHandler exposes accounting period endpoints.
type PeriodHandler struct {
	service periodService
}

// NewPeriodHandler builds a new handler.
func NewPeriodHandler(service periodService) *PeriodHandler {
	return &PeriodHandler{service: service}
}

// List godoc
// @Summary List periods
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	periods, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, periods)
}

// Open godoc
// @Summary Open a new accounting period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body dto.OpenPeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Open(c *gin.Context) {
	var req dto.OpenPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period payload"))
		return
	}
	period, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Balances godoc
// @Summary Balances and earnings for a period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/balances [get]
func (h *PeriodHandler) Balances(c *gin.Context) {
	balances, err := h.service.Balances(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balances)
}

// Close godoc
// @Summary Close a period and freeze its totals
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/close [post]
func (h *PeriodHandler) Close(c *gin.Context) {
	balances, err := h.service.Close(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balances)
}

// Statement godoc
// @Summary Download the period statement
// @Tags Periods
// @Produce application/pdf
// @Param id path string true "Period ID"
// @Success 200 {file} file
// @Router /periods/{id}/statement.pdf [get]
func (h *PeriodHandler) Statement(c *gin.Context) {
	pdf, filename, err := h.service.Statement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// StatementLink godoc
// @Summary Signed download link for a closed period's statement
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /periods/{id}/statement-link [get]
func (h *PeriodHandler) StatementLink(c *gin.Context) {
	link, err := h.service.StatementLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	prefix := strings.TrimSuffix(c.FullPath(), "/periods/:id/statement-link")
	link.URL = prefix + "/statements/download?token=" + url.QueryEscape(link.Token)
	response.OK(c, link)
}

// DownloadStatement godoc
// @Summary Download an archived statement with a signed token
// @Tags Periods
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /statements/download [get]
func (h *PeriodHandler) DownloadStatement(c *gin.Context) {
	pdf, filename, err := h.service.DownloadStatement(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
