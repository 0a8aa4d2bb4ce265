package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

type manifestLoadStore interface {
	Get(ctx context.Context, id string) (*models.Load, error)
	List(ctx context.Context) ([]models.Load, error)
	Create(ctx context.Context, load models.Load) error
	Transact(ctx context.Context, id string, fn func(load *models.Load) error) (*models.Load, error)
	DeleteIf(ctx context.Context, id string, check func(load models.Load) error) (*models.Load, error)
}

type manifestQueueStore interface {
	Get(ctx context.Context, id string) (*models.QueueEntry, error)
	List(ctx context.Context) ([]models.QueueEntry, error)
	Put(ctx context.Context, entry models.QueueEntry) error
	Remove(ctx context.Context, id string) error
}

type instructorReader interface {
	Get(ctx context.Context, id string) (*models.Instructor, error)
	List(ctx context.Context) ([]models.Instructor, error)
}

type groupReader interface {
	Get(ctx context.Context, id string) (*models.Group, error)
}

type settingsReader interface {
	Current(ctx context.Context) (models.ManifestSettings, error)
}

// ReconcileScheduler queues a repair pass after a failed second write.
type ReconcileScheduler interface {
	Schedule(req ReconcileRequest)
}

type mutationRecorder interface {
	RecordMutation(kind string, err error)
}

// ManifestService applies load mutations. Every write goes through a
// compare-and-swap transaction on the load record and re-validates capacity
// and instructor conflicts against the latest version.
type ManifestService struct {
	loads       manifestLoadStore
	queue       manifestQueueStore
	instructors instructorReader
	groups      groupReader
	settings    settingsReader
	reconcile   ReconcileScheduler
	metrics     mutationRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// ManifestServiceOption configures the service.
type ManifestServiceOption func(*ManifestService)

// WithManifestClock overrides the wall clock.
func WithManifestClock(now func() time.Time) ManifestServiceOption {
	return func(s *ManifestService) {
		if now != nil {
			s.now = func() time.Time { return now().UTC() }
		}
	}
}

// WithReconcileScheduler wires the repair queue used after partial writes.
func WithReconcileScheduler(r ReconcileScheduler) ManifestServiceOption {
	return func(s *ManifestService) {
		s.reconcile = r
	}
}

// WithMutationMetrics records the outcome of every mutation.
func WithMutationMetrics(m mutationRecorder) ManifestServiceOption {
	return func(s *ManifestService) {
		s.metrics = m
	}
}

// NewManifestService constructs the service with defaults.
func NewManifestService(loads manifestLoadStore, queue manifestQueueStore, instructors instructorReader, groups groupReader, settings settingsReader, validate *validator.Validate, logger *zap.Logger, opts ...ManifestServiceOption) *ManifestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ManifestService{
		loads:       loads,
		queue:       queue,
		instructors: instructors,
		groups:      groups,
		settings:    settings,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ListLoads returns every load ordered by position.
func (s *ManifestService) ListLoads(ctx context.Context) ([]models.Load, error) {
	return s.loads.List(ctx)
}

// GetLoad returns one load.
func (s *ManifestService) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	return s.loads.Get(ctx, id)
}

// ListQueue returns waiting students in FIFO order.
func (s *ManifestService) ListQueue(ctx context.Context) ([]models.QueueEntry, error) {
	return s.queue.List(ctx)
}

// Availability reports whether the instructor may be placed on the given position.
func (s *ManifestService) Availability(ctx context.Context, instructorID string, position int) (*dto.AvailabilityResponse, error) {
	if position <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "position must be positive")
	}
	if _, err := s.instructors.Get(ctx, instructorID); err != nil {
		return nil, err
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	active := engine.ActiveLoads(loads)
	resp := &dto.AvailabilityResponse{
		InstructorID: instructorID,
		Position:     position,
		Available:    engine.IsInstructorAvailable(instructorID, position, active, settings.InstructorCycleTime, settings.MinutesBetweenLoads),
	}
	if next, constrained := engine.NextAvailablePosition(instructorID, active, settings.InstructorCycleTime, settings.MinutesBetweenLoads); constrained {
		resp.NextAvailablePosition = &next
	}
	return resp, nil
}

// AssignToLoad places a queued student on a load.
func (s *ManifestService) AssignToLoad(ctx context.Context, loadID string, req dto.AssignRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandAssign, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	entry, err := s.queue.Get(ctx, req.QueueEntryID)
	if err != nil {
		return nil, nil, notWaiting(req.QueueEntryID, err)
	}
	assignment := entry.Assignment(req.InstructorID, req.VideoInstructorID, s.now())
	return s.assign(ctx, loadID, []models.LoadAssignment{assignment}, fmt.Sprintf("assign %s", studentLabel(assignment)))
}

// AssignGroup places every queued member of a group on one load, checking
// capacity for the whole group at once.
func (s *ManifestService) AssignGroup(ctx context.Context, loadID string, req dto.AssignGroupRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandAssign, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	group, err := s.groups.Get(ctx, req.GroupID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	members := make(map[string]dto.GroupMemberRequest, len(req.Members))
	for _, m := range req.Members {
		members[m.QueueEntryID] = m
	}
	placedAt := s.now()
	assignments := make([]models.LoadAssignment, 0)
	for _, entry := range entries {
		if entry.GroupID != group.ID {
			continue
		}
		m := members[entry.ID]
		assignments = append(assignments, entry.Assignment(m.InstructorID, m.VideoInstructorID, placedAt))
		delete(members, entry.ID)
	}
	if len(assignments) == 0 {
		return nil, nil, appErrors.Clonef(appErrors.ErrNotFound, "no queued students for group %s", group.Name)
	}
	for id := range members {
		return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "queue entry %s is not a waiting member of group %s", id, group.Name)
	}
	return s.assign(ctx, loadID, assignments, fmt.Sprintf("assign group %s", group.Name))
}

func (s *ManifestService) assign(ctx context.Context, loadID string, assignments []models.LoadAssignment, what string) (*dto.ManifestResult, *models.Command, error) {
	target, err := s.loads.Get(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOpen(*target); err != nil {
		return nil, nil, err
	}
	all, err := s.loads.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range assignments {
		if onLoad, ok := findAssignment(all, a.ID); ok {
			s.scheduleReconcile("queue entry already placed", nil)
			return nil, nil, appErrors.Clonef(appErrors.ErrConflict, "%s is already on load #%d", studentLabel(a), onLoad.Position)
		}
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	proposed := append(append([]models.LoadAssignment(nil), target.Assignments...), assignments...)
	if err := engine.ValidateNoConflict(*target, proposed); err != nil {
		return nil, nil, err
	}
	if err := engine.ValidateCapacity(*target, assignments); err != nil {
		return nil, nil, err
	}
	warnings, err := s.checkInstructors(ctx, assignments, *target, all, settings, true)
	if err != nil {
		return nil, nil, err
	}

	placements := make([]models.Placement, len(assignments))
	for i, a := range assignments {
		placements[i] = models.Placement{Assignment: a}
	}
	cmd := &models.Command{
		Kind:        models.CommandAssign,
		LoadID:      loadID,
		Placements:  placements,
		Description: fmt.Sprintf("%s to load #%d", what, target.Position),
	}
	result, err := s.applyAssign(ctx, cmd, true)
	if err != nil {
		return nil, nil, err
	}
	result.Warnings = warnings
	return result, cmd, nil
}

// ReturnToQueue removes an assignment from a load and puts the student back in
// the queue with the original queue timestamp.
func (s *ManifestService) ReturnToQueue(ctx context.Context, loadID, assignmentID string) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandReturnToQueue, err) }()
	load, err := s.loads.Get(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOpen(*load); err != nil {
		return nil, nil, err
	}
	idx := load.IndexOf(assignmentID)
	if idx < 0 {
		return nil, nil, appErrors.Clonef(appErrors.ErrNotFound, "assignment %s is not on load #%d", assignmentID, load.Position)
	}
	a := load.Assignments[idx]
	cmd = &models.Command{
		Kind:        models.CommandReturnToQueue,
		LoadID:      loadID,
		Placements:  []models.Placement{{Assignment: a, Index: idx}},
		Description: fmt.Sprintf("return %s to queue from load #%d", studentLabel(a), load.Position),
	}
	result, err = s.applyReturn(ctx, cmd, true)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// MoveAssignment moves one assignment to another load.
func (s *ManifestService) MoveAssignment(ctx context.Context, fromLoadID, assignmentID string, req dto.MoveRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandMove, err) }()
	return s.move(ctx, fromLoadID, req, func(source models.Load) ([]int, string, error) {
		idx := source.IndexOf(assignmentID)
		if idx < 0 {
			return nil, "", appErrors.Clonef(appErrors.ErrNotFound, "assignment %s is not on load #%d", assignmentID, source.Position)
		}
		return []int{idx}, studentLabel(source.Assignments[idx]), nil
	})
}

// MoveGroup moves every member of a group sitting on the source load.
func (s *ManifestService) MoveGroup(ctx context.Context, fromLoadID, groupID string, req dto.MoveRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandMove, err) }()
	return s.move(ctx, fromLoadID, req, func(source models.Load) ([]int, string, error) {
		idxs := make([]int, 0)
		for i, a := range source.Assignments {
			if a.GroupID == groupID {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) == 0 {
			return nil, "", appErrors.Clonef(appErrors.ErrNotFound, "group %s has no students on load #%d", groupID, source.Position)
		}
		return idxs, "group " + groupID, nil
	})
}

func (s *ManifestService) move(ctx context.Context, fromLoadID string, req dto.MoveRequest, pick func(source models.Load) ([]int, string, error)) (*dto.ManifestResult, *models.Command, error) {
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	if req.ToLoadID == fromLoadID {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "target load must differ from the source load")
	}
	source, err := s.loads.Get(ctx, fromLoadID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOpen(*source); err != nil {
		return nil, nil, err
	}
	target, err := s.loads.Get(ctx, req.ToLoadID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOpen(*target); err != nil {
		return nil, nil, err
	}
	idxs, what, err := pick(*source)
	if err != nil {
		return nil, nil, err
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.loads.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	placedAt := s.now()
	moving := make([]models.LoadAssignment, len(idxs))
	placements := make([]models.Placement, len(idxs))
	for i, idx := range idxs {
		original := source.Assignments[idx]
		moved := original
		moved.PlacedAt = placedAt
		moving[i] = moved
		placements[i] = models.Placement{Assignment: moved, Source: &original, SourceIndex: idx}
	}
	proposed := append(append([]models.LoadAssignment(nil), target.Assignments...), moving...)
	if err := engine.ValidateNoConflict(*target, proposed); err != nil {
		return nil, nil, err
	}
	if err := engine.ValidateCapacity(*target, moving); err != nil {
		return nil, nil, err
	}
	if _, err := s.checkInstructors(ctx, moving, *target, engine.ExcludeLoad(all, source.ID), settings, false); err != nil {
		return nil, nil, err
	}

	cmd := &models.Command{
		Kind:        models.CommandMove,
		LoadID:      target.ID,
		FromLoadID:  source.ID,
		Placements:  placements,
		Description: fmt.Sprintf("move %s from load #%d to load #%d", what, source.Position, target.Position),
	}
	result, err := s.applyMove(ctx, cmd, true)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// UpdateAssignment sets instructors or the missed and off-day flags of an assignment.
func (s *ManifestService) UpdateAssignment(ctx context.Context, loadID, assignmentID string, req dto.UpdateAssignmentRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandUpdateAssignment, err) }()
	load, err := s.loads.Get(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	idx := load.IndexOf(assignmentID)
	if idx < 0 {
		return nil, nil, appErrors.Clonef(appErrors.ErrNotFound, "assignment %s is not on load #%d", assignmentID, load.Position)
	}
	current := load.Assignments[idx]
	before := models.FieldsOf(current)
	after := patchFields(before, req)
	if after == before {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "nothing to change")
	}
	if instructorsChanged(before, after) {
		if err := requireOpen(*load); err != nil {
			return nil, nil, err
		}
		settings, err := s.settings.Current(ctx)
		if err != nil {
			return nil, nil, err
		}
		all, err := s.loads.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		proposed := current
		proposed.InstructorID, proposed.VideoInstructorID = after.InstructorID, after.VideoInstructorID
		// Only newly named instructors are checked; the others already hold the seat.
		if proposed.InstructorID == before.InstructorID {
			proposed.InstructorID = ""
		}
		if proposed.VideoInstructorID == before.VideoInstructorID {
			proposed.VideoInstructorID = ""
		}
		if _, err := s.checkInstructors(ctx, []models.LoadAssignment{proposed}, *load, all, settings, true); err != nil {
			return nil, nil, err
		}
	}

	cmd = &models.Command{
		Kind:        models.CommandUpdateAssignment,
		LoadID:      loadID,
		Patch:       &models.AssignmentPatch{AssignmentID: assignmentID, Before: before, After: after},
		Description: fmt.Sprintf("update %s on load #%d", studentLabel(current), load.Position),
	}
	result, err = s.applyPatch(ctx, cmd, func(latest models.AssignmentFields) models.AssignmentFields {
		return patchFields(latest, req)
	})
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// Transition advances a load one lifecycle step and cascades the countdown to
// the next anchor on departure.
func (s *ManifestService) Transition(ctx context.Context, loadID string, req dto.TransitionRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandTransition, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	load, err := s.loads.Get(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	if err := engine.ValidateTransition(load.Status, req.Status); err != nil {
		return nil, nil, err
	}
	cmd = &models.Command{
		Kind:        models.CommandTransition,
		LoadID:      loadID,
		Description: fmt.Sprintf("mark load #%d %s", load.Position, req.Status),
	}
	result, err = s.applyTransitionForward(ctx, cmd, req.Status)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// ApplyDelay shifts the departure of a load by whole minutes.
func (s *ManifestService) ApplyDelay(ctx context.Context, loadID string, req dto.DelayRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandDelay, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	load, err := s.loads.Get(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	cmd = &models.Command{
		Kind:        models.CommandDelay,
		LoadID:      loadID,
		Delay:       req.Minutes,
		Description: fmt.Sprintf("delay load #%d by %d min", load.Position, req.Minutes),
	}
	result, err = s.applyDelay(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// CreateLoad appends a building load after every existing building load.
func (s *ManifestService) CreateLoad(ctx context.Context, req dto.CreateLoadRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandCreateLoad, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.loads.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = settings.DefaultPlaneCapacity
	}
	sortOrder := engine.NextSortOrder(all)
	load := models.Load{
		ID:          uuid.NewString(),
		Status:      models.LoadStatusBuilding,
		SortOrder:   &sortOrder,
		Capacity:    capacity,
		AircraftID:  req.AircraftID,
		Assignments: []models.LoadAssignment{},
		CreatedAt:   s.now(),
	}
	others := make([]models.PositionChange, 0)
	for _, change := range engine.RenumberPositions(append(all, load)) {
		if change.LoadID == load.ID {
			load.Position = change.To
			continue
		}
		others = append(others, change)
	}
	cmd = &models.Command{
		Kind:        models.CommandCreateLoad,
		LoadID:      load.ID,
		Load:        &load,
		Positions:   others,
		Description: fmt.Sprintf("create load #%d", load.Position),
	}
	result, err = s.applyCreate(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// DeleteLoad removes a load, returning its students to the queue. Completed
// loads require confirm.
func (s *ManifestService) DeleteLoad(ctx context.Context, loadID string, confirm bool) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandDeleteLoad, err) }()
	cmd = &models.Command{Kind: models.CommandDeleteLoad, LoadID: loadID}
	result, err = s.applyDelete(ctx, cmd, true, confirm)
	if err != nil {
		return nil, nil, err
	}
	cmd.Description = fmt.Sprintf("delete load #%d", cmd.Load.Position)
	return result, cmd, nil
}

// ReorderLoads sets the order of the building loads and renumbers them.
func (s *ManifestService) ReorderLoads(ctx context.Context, req dto.ReorderLoadsRequest) (result *dto.ManifestResult, cmd *models.Command, err error) {
	defer func() { s.observe(models.CommandReorder, err) }()
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	all, err := s.loads.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	building := make(map[string]models.Load)
	for _, l := range all {
		if l.Status == models.LoadStatusBuilding {
			building[l.ID] = l
		}
	}
	if len(req.LoadIDs) != len(building) {
		return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "reorder must list all %d building loads exactly once", len(building))
	}
	seen := make(map[string]struct{}, len(req.LoadIDs))
	changes := make([]models.SortOrderChange, 0)
	for i, id := range req.LoadIDs {
		l, ok := building[id]
		if !ok {
			return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "load %s is not building", id)
		}
		if _, dup := seen[id]; dup {
			return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "load %s listed twice", id)
		}
		seen[id] = struct{}{}
		to := i + 1
		if l.SortOrder != nil && *l.SortOrder == to {
			continue
		}
		changes = append(changes, models.SortOrderChange{LoadID: id, From: l.SortOrder, To: &to})
	}
	cmd = &models.Command{
		Kind:        models.CommandReorder,
		SortOrders:  changes,
		Description: "reorder building loads",
	}
	result, err = s.applyReorder(ctx, cmd, true)
	if err != nil {
		return nil, nil, err
	}
	return result, cmd, nil
}

// Execute replays a recorded command exactly. Used by the action history for
// undo (with the inverse command) and redo.
func (s *ManifestService) Execute(ctx context.Context, cmd models.Command) (result *dto.ManifestResult, err error) {
	defer func() { s.observe("replay_"+cmd.Kind, err) }()
	c := cmd
	switch cmd.Kind {
	case models.CommandAssign:
		if err := s.requireQueued(ctx, c.Placements); err != nil {
			return nil, err
		}
		return s.applyAssign(ctx, &c, false)
	case models.CommandReturnToQueue:
		return s.applyReturn(ctx, &c, false)
	case models.CommandMove:
		return s.applyMove(ctx, &c, false)
	case models.CommandUpdateAssignment:
		return s.applyPatch(ctx, &c, nil)
	case models.CommandTransition:
		return s.applyTransitionReplay(ctx, &c)
	case models.CommandDelay:
		return s.applyDelay(ctx, &c)
	case models.CommandCreateLoad:
		return s.applyCreate(ctx, &c)
	case models.CommandDeleteLoad:
		return s.applyDelete(ctx, &c, false, true)
	case models.CommandReorder:
		return s.applyReorder(ctx, &c, false)
	}
	return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown command kind %q", cmd.Kind)
}

// checkInstructors runs qualification and availability checks for every named
// instructor. Availability excludes the target load; instructor conflicts on
// it are caught by the conflict scan.
func (s *ManifestService) checkInstructors(ctx context.Context, assignments []models.LoadAssignment, target models.Load, all []models.Load, settings models.ManifestSettings, qualify bool) ([]string, error) {
	active := engine.ExcludeLoad(engine.ActiveLoads(all), target.ID)
	warnings := make([]string, 0)
	for _, a := range assignments {
		for _, role := range []struct {
			id    string
			video bool
		}{{a.InstructorID, false}, {a.VideoInstructorID, true}} {
			if role.id == "" {
				continue
			}
			inst, err := s.instructors.Get(ctx, role.id)
			if err != nil {
				return nil, err
			}
			if qualify {
				check := engine.CheckQualification
				if role.video {
					check = engine.CheckVideoQualification
				}
				if err := check(*inst, a); err != nil {
					return nil, err
				}
			}
			if next, constrained := engine.NextAvailablePosition(inst.ID, active, settings.InstructorCycleTime, settings.MinutesBetweenLoads); constrained && target.Position < next {
				return nil, appErrors.Clonef(appErrors.ErrInstructorConflict, "%s is not available until load #%d", instructorLabel(*inst), next)
			}
		}
		if a.IsRequest && a.RequestedInstructorID != "" && a.InstructorID != "" && a.InstructorID != a.RequestedInstructorID {
			warnings = append(warnings, fmt.Sprintf("%s requested instructor %s", studentLabel(a), a.RequestedInstructorID))
		}
	}
	if len(warnings) == 0 {
		return nil, nil
	}
	return warnings, nil
}

func (s *ManifestService) requireQueued(ctx context.Context, placements []models.Placement) error {
	for _, p := range placements {
		if _, err := s.queue.Get(ctx, p.Assignment.ID); err != nil {
			return notWaiting(p.Assignment.ID, err)
		}
	}
	return nil
}

func (s *ManifestService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return nil
}

func (s *ManifestService) observe(kind models.CommandKind, err error) {
	if s.metrics != nil {
		s.metrics.RecordMutation(string(kind), err)
	}
}

func (s *ManifestService) scheduleReconcile(reason string, restore []models.QueueEntry) {
	if s.reconcile == nil {
		s.logger.Warn("queue reconciliation needed but no scheduler configured", zap.String("reason", reason))
		return
	}
	s.reconcile.Schedule(ReconcileRequest{Reason: reason, Restore: restore})
}

func requireOpen(load models.Load) error {
	if load.Status.Finalized() {
		return appErrors.Clonef(appErrors.ErrInvalidTransition, "load #%d is %s; its manifest is locked", load.Position, load.Status)
	}
	return nil
}

func notWaiting(queueEntryID string, err error) error {
	if errors.Is(err, appErrors.ErrNotFound) {
		return appErrors.Clonef(appErrors.ErrNotFound, "queue entry %s is no longer waiting", queueEntryID)
	}
	return err
}

func findAssignment(loads []models.Load, assignmentID string) (models.Load, bool) {
	for _, l := range loads {
		if l.IndexOf(assignmentID) >= 0 {
			return l, true
		}
	}
	return models.Load{}, false
}

func patchFields(f models.AssignmentFields, req dto.UpdateAssignmentRequest) models.AssignmentFields {
	if req.InstructorID != nil {
		f.InstructorID = *req.InstructorID
	}
	if req.VideoInstructorID != nil {
		f.VideoInstructorID = *req.VideoInstructorID
	}
	if req.IsMissed != nil {
		f.IsMissed = *req.IsMissed
	}
	if req.IsOffDay != nil {
		f.IsOffDay = *req.IsOffDay
	}
	return f
}

func instructorsChanged(before, after models.AssignmentFields) bool {
	return before.InstructorID != after.InstructorID || before.VideoInstructorID != after.VideoInstructorID
}

func studentLabel(a models.LoadAssignment) string {
	if a.StudentName != "" {
		return a.StudentName
	}
	return "student " + a.StudentID
}

func instructorLabel(inst models.Instructor) string {
	if inst.Name != "" {
		return inst.Name
	}
	return "instructor " + inst.ID
}
