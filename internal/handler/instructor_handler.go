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

type availabilityService interface {
	Availability(ctx context.Context, instructorID string, position int) (*dto.AvailabilityResponse, error)
}

type suggestionService interface {
	Suggest(ctx context.Context, queueEntryID, loadID string) ([]models.InstructorSuggestion, error)
}

type balanceService interface {
	InstructorBalance(ctx context.Context, instructorID string) (float64, error)
}

// InstructorHandler answers availability, suggestion and balance lookups.
type InstructorHandler struct {
	availability availabilityService
	suggestions  suggestionService
	balances     balanceService
}

// NewInstructorHandler builds a new handler.
func NewInstructorHandler(availability availabilityService, suggestions suggestionService, balances balanceService) *InstructorHandler {
	return &InstructorHandler{availability: availability, suggestions: suggestions, balances: balances}
}

// Availability godoc
// @Summary Check instructor availability for a load position
// @Tags Instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Param position query int true "Load position"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/availability [get]
func (h *InstructorHandler) Availability(c *gin.Context) {
	position, err := strconv.Atoi(c.Query("position"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "position must be an integer"))
		return
	}
	res, err := h.availability.Availability(c.Request.Context(), c.Param("id"), position)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, middleware.ExtractMeta(c))
}

// Suggestions godoc
// @Summary Rank instructors for a queued student
// @Tags Instructors
// @Produce json
// @Param queueEntryId query string true "Queue entry ID"
// @Param loadId query string false "Target load ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/suggestions [get]
func (h *InstructorHandler) Suggestions(c *gin.Context) {
	queueEntryID := c.Query("queueEntryId")
	if queueEntryID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "queueEntryId is required"))
		return
	}
	out, err := h.suggestions.Suggest(c.Request.Context(), queueEntryID, c.Query("loadId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, out, middleware.ExtractMeta(c))
}

// Balance godoc
// @Summary Live rotation balance of an instructor
// @Tags Instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/balance [get]
func (h *InstructorHandler) Balance(c *gin.Context) {
	id := c.Param("id")
	balance, err := h.balances.InstructorBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"instructorId": id, "balance": balance})
}
