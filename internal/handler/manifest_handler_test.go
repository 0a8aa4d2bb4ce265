package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/middleware"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

type manifestServiceMock struct {
	result *dto.ManifestResult
	err    error
	loads  []models.Load

	lastLoadID       string
	lastAssignmentID string
	lastAssign       dto.AssignRequest
	lastTransition   dto.TransitionRequest
	lastPatch        dto.UpdateAssignmentRequest
	lastConfirm      bool
	createCalled     bool
}

func (m *manifestServiceMock) command(kind models.CommandKind) (*dto.ManifestResult, *models.Command, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.result, &models.Command{Kind: kind, LoadID: m.lastLoadID, Description: string(kind)}, nil
}

func (m *manifestServiceMock) ListLoads(ctx context.Context) ([]models.Load, error) {
	return m.loads, m.err
}

func (m *manifestServiceMock) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	m.lastLoadID = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Load{ID: id}, nil
}

func (m *manifestServiceMock) ListQueue(ctx context.Context) ([]models.QueueEntry, error) {
	return nil, m.err
}

func (m *manifestServiceMock) CreateLoad(ctx context.Context, req dto.CreateLoadRequest) (*dto.ManifestResult, *models.Command, error) {
	m.createCalled = true
	return m.command(models.CommandCreateLoad)
}

func (m *manifestServiceMock) DeleteLoad(ctx context.Context, loadID string, confirm bool) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastConfirm = loadID, confirm
	return m.command(models.CommandDeleteLoad)
}

func (m *manifestServiceMock) ReorderLoads(ctx context.Context, req dto.ReorderLoadsRequest) (*dto.ManifestResult, *models.Command, error) {
	return m.command(models.CommandReorder)
}

func (m *manifestServiceMock) Transition(ctx context.Context, loadID string, req dto.TransitionRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastTransition = loadID, req
	return m.command(models.CommandTransition)
}

func (m *manifestServiceMock) ApplyDelay(ctx context.Context, loadID string, req dto.DelayRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID = loadID
	return m.command(models.CommandDelay)
}

func (m *manifestServiceMock) AssignToLoad(ctx context.Context, loadID string, req dto.AssignRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastAssign = loadID, req
	return m.command(models.CommandAssign)
}

func (m *manifestServiceMock) AssignGroup(ctx context.Context, loadID string, req dto.AssignGroupRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID = loadID
	return m.command(models.CommandAssign)
}

func (m *manifestServiceMock) UpdateAssignment(ctx context.Context, loadID, assignmentID string, req dto.UpdateAssignmentRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastAssignmentID, m.lastPatch = loadID, assignmentID, req
	return m.command(models.CommandUpdateAssignment)
}

func (m *manifestServiceMock) MoveAssignment(ctx context.Context, fromLoadID, assignmentID string, req dto.MoveRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastAssignmentID = fromLoadID, assignmentID
	return m.command(models.CommandMove)
}

func (m *manifestServiceMock) MoveGroup(ctx context.Context, fromLoadID, groupID string, req dto.MoveRequest) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID = fromLoadID
	return m.command(models.CommandMove)
}

func (m *manifestServiceMock) ReturnToQueue(ctx context.Context, loadID, assignmentID string) (*dto.ManifestResult, *models.Command, error) {
	m.lastLoadID, m.lastAssignmentID = loadID, assignmentID
	return m.command(models.CommandReturnToQueue)
}

type historyRecorderMock struct {
	recorded []*models.Command
	actors   []string
}

func (m *historyRecorderMock) Record(ctx context.Context, cmd *models.Command, actor string) *models.Action {
	m.recorded = append(m.recorded, cmd)
	m.actors = append(m.actors, actor)
	return &models.Action{ID: "action-1", Type: cmd.Kind, Description: cmd.Description, Actor: actor, Command: *cmd}
}

func newManifestContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "manifest-1", Role: models.RoleManifest})
	return c, w
}

func TestManifestHandlerAssignRecordsHistory(t *testing.T) {
	svc := &manifestServiceMock{result: &dto.ManifestResult{Load: &models.Load{ID: "load-1", Position: 1}}}
	history := &historyRecorderMock{}
	handler := NewManifestHandler(svc, history)

	c, w := newManifestContext(http.MethodPost, "/loads/load-1/assignments",
		`{"queueEntryId":"q1","instructorId":"ana"}`, gin.Params{{Key: "id", Value: "load-1"}})
	handler.Assign(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "load-1", svc.lastLoadID)
	assert.Equal(t, "q1", svc.lastAssign.QueueEntryID)
	assert.Equal(t, "ana", svc.lastAssign.InstructorID)
	require.Len(t, history.recorded, 1)
	assert.Equal(t, models.CommandAssign, history.recorded[0].Kind)
	assert.Equal(t, []string{"manifest-1"}, history.actors)

	var body struct {
		Data dto.CommandResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data.Action)
	assert.Equal(t, "action-1", body.Data.Action.ID)
	assert.Equal(t, 1, body.Data.Result.Load.Position)
}

func TestManifestHandlerAssignInvalidBody(t *testing.T) {
	svc := &manifestServiceMock{}
	history := &historyRecorderMock{}
	handler := NewManifestHandler(svc, history)

	c, w := newManifestContext(http.MethodPost, "/loads/load-1/assignments", `{"queueEntryId":`, gin.Params{{Key: "id", Value: "load-1"}})
	handler.Assign(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastLoadID)
	assert.Empty(t, history.recorded)
}

func TestManifestHandlerServiceErrorSkipsHistory(t *testing.T) {
	svc := &manifestServiceMock{err: appErrors.Clone(appErrors.ErrCapacityExceeded, "need 2 seats, 1 available on load #1")}
	history := &historyRecorderMock{}
	handler := NewManifestHandler(svc, history)

	c, w := newManifestContext(http.MethodPost, "/loads/load-1/assignments", `{"queueEntryId":"q1"}`, gin.Params{{Key: "id", Value: "load-1"}})
	handler.Assign(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CAPACITY_EXCEEDED")
	assert.Contains(t, w.Body.String(), "1 available on load #1")
	assert.Empty(t, history.recorded)
}

func TestManifestHandlerCreateLoadWithoutBody(t *testing.T) {
	svc := &manifestServiceMock{result: &dto.ManifestResult{Load: &models.Load{ID: "load-9"}}}
	handler := NewManifestHandler(svc, &historyRecorderMock{})

	c, w := newManifestContext(http.MethodPost, "/loads", "", nil)
	handler.CreateLoad(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.createCalled)
}

func TestManifestHandlerDeleteLoadConfirm(t *testing.T) {
	svc := &manifestServiceMock{result: &dto.ManifestResult{}}
	handler := NewManifestHandler(svc, nil)

	c, w := newManifestContext(http.MethodDelete, "/loads/load-2?confirm=true", "", gin.Params{{Key: "id", Value: "load-2"}})
	handler.DeleteLoad(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "load-2", svc.lastLoadID)
	assert.True(t, svc.lastConfirm)
}

func TestManifestHandlerTransition(t *testing.T) {
	svc := &manifestServiceMock{result: &dto.ManifestResult{}}
	handler := NewManifestHandler(svc, &historyRecorderMock{})

	c, w := newManifestContext(http.MethodPost, "/loads/load-1/transition", `{"status":"ready"}`, gin.Params{{Key: "id", Value: "load-1"}})
	handler.Transition(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LoadStatusReady, svc.lastTransition.Status)
}

func TestManifestHandlerSetInstructors(t *testing.T) {
	svc := &manifestServiceMock{result: &dto.ManifestResult{}}
	handler := NewManifestHandler(svc, &historyRecorderMock{})

	c, w := newManifestContext(http.MethodPut, "/loads/load-1/assignments/as-1/instructors", `{"videoInstructorId":"eve"}`,
		gin.Params{{Key: "id", Value: "load-1"}, {Key: "assignmentId", Value: "as-1"}})
	handler.SetInstructors(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "as-1", svc.lastAssignmentID)
	assert.Nil(t, svc.lastPatch.InstructorID)
	require.NotNil(t, svc.lastPatch.VideoInstructorID)
	assert.Equal(t, "eve", *svc.lastPatch.VideoInstructorID)
}

func TestManifestHandlerGetLoadNotFound(t *testing.T) {
	svc := &manifestServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "load not found")}
	handler := NewManifestHandler(svc, nil)

	c, w := newManifestContext(http.MethodGet, "/loads/missing", "", gin.Params{{Key: "id", Value: "missing"}})
	handler.GetLoad(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
