package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
	"github.com/noah-isme/dz-manifest-api/pkg/jobs"
)

const (
	reconcileJobID   = "queue-reconcile"
	reconcileJobType = "queue_reconcile"
)

// ReconcileRequest asks for a repair pass. Restore lists queue entries whose
// write failed and must be put back unless the student sits on a load.
type ReconcileRequest struct {
	Reason  string              `json:"reason"`
	Restore []models.QueueEntry `json:"restore,omitempty"`
}

type reconcileLoadStore interface {
	List(ctx context.Context) ([]models.Load, error)
	Transact(ctx context.Context, id string, fn func(load *models.Load) error) (*models.Load, error)
}

// ReconcileService repairs the state left behind when the second write of an
// assign, move or removal fails: queue entries that are already placed on a
// load, and assignments placed on two loads at once.
type ReconcileService struct {
	loads  reconcileLoadStore
	queue  manifestQueueStore
	jobs   *jobs.Queue
	audit  auditLogger
	logger *zap.Logger
	now    func() time.Time
}

// ReconcileServiceOption configures the reconciliation service.
type ReconcileServiceOption func(*ReconcileService)

// WithReconcileAudit records every pass that changed something.
func WithReconcileAudit(audit auditLogger) ReconcileServiceOption {
	return func(s *ReconcileService) {
		s.audit = audit
	}
}

// WithReconcileClock overrides the wall clock.
func WithReconcileClock(now func() time.Time) ReconcileServiceOption {
	return func(s *ReconcileService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReconcileService constructs the service. The worker pool is created
// here and started by Start.
func NewReconcileService(loads reconcileLoadStore, queue manifestQueueStore, cfg jobs.QueueConfig, logger *zap.Logger, opts ...ReconcileServiceOption) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReconcileService{
		loads:  loads,
		queue:  queue,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	cfg.Merge = mergeReconcileRequests
	svc.jobs = jobs.NewQueue("reconcile", svc.handle, cfg)
	return svc
}

// Start launches the background workers.
func (s *ReconcileService) Start(ctx context.Context) {
	s.jobs.Start(ctx)
}

// Stop waits for the workers to exit.
func (s *ReconcileService) Stop() {
	s.jobs.Stop()
}

// Schedule queues a pass. Requests made while one is waiting are merged into it.
func (s *ReconcileService) Schedule(req ReconcileRequest) {
	err := s.jobs.TryEnqueue(jobs.Job{ID: reconcileJobID, Type: reconcileJobType, Payload: req})
	if err == nil {
		return
	}
	s.logger.Warn("reconcile queue unavailable, running inline", zap.String("reason", req.Reason), zap.Error(err))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Run(ctx, req); err != nil {
			s.logger.Error("inline reconcile failed", zap.Error(err))
		}
	}()
}

func (s *ReconcileService) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(ReconcileRequest)
	if !ok {
		return fmt.Errorf("unexpected reconcile payload %T", job.Payload)
	}
	_, err := s.Run(ctx, req)
	return err
}

// Run performs one reconciliation pass synchronously.
func (s *ReconcileService) Run(ctx context.Context, req ReconcileRequest) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{
		Reason:               req.Reason,
		RemovedQueueEntries:  []string{},
		RemovedDuplicates:    []dto.DuplicateRemoval{},
		RestoredQueueEntries: []string{},
	}

	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	placements := placementsByAssignment(loads)

	for _, entry := range req.Restore {
		if _, placed := placements[entry.ID]; placed {
			continue
		}
		if err := s.queue.Put(ctx, entry); err != nil {
			return nil, err
		}
		report.RestoredQueueEntries = append(report.RestoredQueueEntries, entry.ID)
	}

	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if _, placed := placements[entry.ID]; !placed {
			continue
		}
		if err := s.queue.Remove(ctx, entry.ID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		report.RemovedQueueEntries = append(report.RemovedQueueEntries, entry.ID)
	}

	for assignmentID, copies := range placements {
		if len(copies) < 2 {
			continue
		}
		kept := copies[0]
		for _, stale := range copies[1:] {
			if stale.load.Status.Finalized() {
				s.logger.Warn("duplicate assignment on finalized load left in place",
					zap.String("assignment_id", assignmentID),
					zap.String("load_id", stale.load.ID),
				)
				continue
			}
			removed, err := s.removeStale(ctx, stale.load.ID, assignmentID, stale.placedAt)
			if err != nil {
				return nil, err
			}
			if removed {
				report.RemovedDuplicates = append(report.RemovedDuplicates, dto.DuplicateRemoval{
					AssignmentID: assignmentID,
					LoadID:       stale.load.ID,
					KeptLoadID:   kept.load.ID,
				})
			}
		}
	}
	sort.Slice(report.RemovedDuplicates, func(i, j int) bool {
		return report.RemovedDuplicates[i].AssignmentID < report.RemovedDuplicates[j].AssignmentID
	})

	report.CompletedAt = s.now()
	if changed := len(report.RemovedQueueEntries) + len(report.RemovedDuplicates) + len(report.RestoredQueueEntries); changed > 0 {
		s.logger.Info("queue reconciled",
			zap.String("reason", req.Reason),
			zap.Int("removed_queue_entries", len(report.RemovedQueueEntries)),
			zap.Int("removed_duplicates", len(report.RemovedDuplicates)),
			zap.Int("restored_queue_entries", len(report.RestoredQueueEntries)),
		)
		emitAudit(ctx, s.audit, s.logger, "reconcile-service", &models.AuditLog{
			Action:    models.AuditActionReconcile,
			Resource:  "queue",
			NewValues: auditPayload(report),
		})
	}
	return report, nil
}

func (s *ReconcileService) removeStale(ctx context.Context, loadID, assignmentID string, placedAt time.Time) (bool, error) {
	_, err := s.loads.Transact(ctx, loadID, func(l *models.Load) error {
		idx := l.IndexOf(assignmentID)
		if idx < 0 || !l.Assignments[idx].PlacedAt.Equal(placedAt) || l.Status.Finalized() {
			return errSkipWrite
		}
		l.Assignments = append(l.Assignments[:idx], l.Assignments[idx+1:]...)
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errSkipWrite), errors.Is(err, appErrors.ErrNotFound):
		return false, nil
	}
	return false, err
}

type placement struct {
	load     models.Load
	placedAt time.Time
}

// placementsByAssignment indexes every assignment by id, newest placement first.
func placementsByAssignment(loads []models.Load) map[string][]placement {
	out := make(map[string][]placement)
	for _, l := range loads {
		for _, a := range l.Assignments {
			out[a.ID] = append(out[a.ID], placement{load: l, placedAt: a.PlacedAt})
		}
	}
	for _, copies := range out {
		sort.SliceStable(copies, func(i, j int) bool {
			// Finalized copies have flown; they always win.
			fi, fj := copies[i].load.Status.Finalized(), copies[j].load.Status.Finalized()
			if fi != fj {
				return fi
			}
			return copies[i].placedAt.After(copies[j].placedAt)
		})
	}
	return out
}

func mergeReconcileRequests(waiting, incoming interface{}) interface{} {
	w, ok := waiting.(ReconcileRequest)
	if !ok {
		return incoming
	}
	in, ok := incoming.(ReconcileRequest)
	if !ok {
		return waiting
	}
	if in.Reason != "" && !strings.Contains(w.Reason, in.Reason) {
		if w.Reason == "" {
			w.Reason = in.Reason
		} else {
			w.Reason += "; " + in.Reason
		}
	}
	w.Restore = append(append([]models.QueueEntry(nil), w.Restore...), in.Restore...)
	return w
}
