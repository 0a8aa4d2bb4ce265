package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
)

type instructorServicesMock struct {
	lastPosition   int
	lastQueueEntry string
	lastLoad       string
}

func (m *instructorServicesMock) Availability(ctx context.Context, instructorID string, position int) (*dto.AvailabilityResponse, error) {
	m.lastPosition = position
	next := position + 1
	return &dto.AvailabilityResponse{InstructorID: instructorID, Position: position, NextAvailablePosition: &next}, nil
}

func (m *instructorServicesMock) Suggest(ctx context.Context, queueEntryID, loadID string) ([]models.InstructorSuggestion, error) {
	m.lastQueueEntry, m.lastLoad = queueEntryID, loadID
	return []models.InstructorSuggestion{{Instructor: models.Instructor{ID: "ana"}}}, nil
}

func (m *instructorServicesMock) InstructorBalance(ctx context.Context, instructorID string) (float64, error) {
	return 40, nil
}

func TestInstructorHandlerAvailability(t *testing.T) {
	mock := &instructorServicesMock{}
	handler := NewInstructorHandler(mock, mock, mock)

	c, w := newManifestContext(http.MethodGet, "/instructors/ana/availability?position=3", "", gin.Params{{Key: "id", Value: "ana"}})
	handler.Availability(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, mock.lastPosition)
	assert.Contains(t, w.Body.String(), `"nextAvailablePosition":4`)
}

func TestInstructorHandlerAvailabilityBadPosition(t *testing.T) {
	mock := &instructorServicesMock{}
	handler := NewInstructorHandler(mock, mock, mock)

	c, w := newManifestContext(http.MethodGet, "/instructors/ana/availability?position=first", "", gin.Params{{Key: "id", Value: "ana"}})
	handler.Availability(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstructorHandlerSuggestions(t *testing.T) {
	mock := &instructorServicesMock{}
	handler := NewInstructorHandler(mock, mock, mock)

	c, w := newManifestContext(http.MethodGet, "/instructors/suggestions?queueEntryId=q1&loadId=load-2", "", nil)
	handler.Suggestions(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q1", mock.lastQueueEntry)
	assert.Equal(t, "load-2", mock.lastLoad)

	c, w = newManifestContext(http.MethodGet, "/instructors/suggestions", "", nil)
	handler.Suggestions(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstructorHandlerBalance(t *testing.T) {
	mock := &instructorServicesMock{}
	handler := NewInstructorHandler(mock, mock, mock)

	c, w := newManifestContext(http.MethodGet, "/instructors/ana/balance", "", gin.Params{{Key: "id", Value: "ana"}})
	handler.Balance(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":40`)
}
