package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

const defaultHistoryLimit = 200

// CommandExecutor replays recorded commands.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd models.Command) (*dto.ManifestResult, error)
}

// HistoryService keeps the bounded undo/redo stack of manifest actions.
// Entries before the cursor are undoable; entries from the cursor on are redoable.
type HistoryService struct {
	mu       sync.Mutex
	entries  []models.Action
	cursor   int
	limit    int
	executor CommandExecutor
	audit    auditLogger
	logger   *zap.Logger
	now      func() time.Time
}

// HistoryServiceOption configures the history service.
type HistoryServiceOption func(*HistoryService)

// WithHistoryLimit bounds the number of retained actions.
func WithHistoryLimit(limit int) HistoryServiceOption {
	return func(s *HistoryService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithHistoryAudit persists every recorded, undone and redone action.
func WithHistoryAudit(audit auditLogger) HistoryServiceOption {
	return func(s *HistoryService) {
		s.audit = audit
	}
}

// WithHistoryClock overrides the timestamp source.
func WithHistoryClock(now func() time.Time) HistoryServiceOption {
	return func(s *HistoryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewHistoryService constructs an empty history.
func NewHistoryService(executor CommandExecutor, logger *zap.Logger, opts ...HistoryServiceOption) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &HistoryService{
		limit:    defaultHistoryLimit,
		executor: executor,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Record appends a completed command, discarding any redoable entries.
func (s *HistoryService) Record(ctx context.Context, cmd *models.Command, actor string) *models.Action {
	if cmd == nil {
		return nil
	}
	action := models.Action{
		ID:          uuid.NewString(),
		Type:        cmd.Kind,
		Description: cmd.Description,
		Actor:       actor,
		CreatedAt:   s.now(),
		Command:     *cmd,
	}

	s.mu.Lock()
	s.entries = append(s.entries[:s.cursor], action)
	if overflow := len(s.entries) - s.limit; overflow > 0 {
		s.entries = append([]models.Action(nil), s.entries[overflow:]...)
	}
	s.cursor = len(s.entries)
	s.mu.Unlock()

	s.emit(ctx, models.AuditActionCommand, action, actor)
	return &action
}

// Undo reverts the action just before the cursor. The cursor moves only when
// the inverse command applies cleanly.
func (s *HistoryService) Undo(ctx context.Context, actor string) (*dto.CommandResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == 0 {
		return nil, appErrors.Clone(appErrors.ErrNothingToUndo, "")
	}
	action := s.entries[s.cursor-1]
	result, err := s.executor.Execute(ctx, action.Command.Inverse())
	if err != nil {
		s.logger.Info("undo rejected", zap.String("action_id", action.ID), zap.Error(err))
		return nil, err
	}
	s.cursor--
	s.emit(ctx, models.AuditActionUndo, action, actor)
	return &dto.CommandResponse{Result: result, Action: &action}, nil
}

// Redo re-applies the action at the cursor.
func (s *HistoryService) Redo(ctx context.Context, actor string) (*dto.CommandResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.entries) {
		return nil, appErrors.Clone(appErrors.ErrNothingToRedo, "")
	}
	action := s.entries[s.cursor]
	result, err := s.executor.Execute(ctx, action.Command)
	if err != nil {
		s.logger.Info("redo rejected", zap.String("action_id", action.ID), zap.Error(err))
		return nil, err
	}
	s.cursor++
	s.emit(ctx, models.AuditActionRedo, action, actor)
	return &dto.CommandResponse{Result: result, Action: &action}, nil
}

// View returns a copy of the history and cursor.
func (s *HistoryService) View() models.HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]models.Action, len(s.entries))
	copy(entries, s.entries)
	return models.HistoryView{
		Entries: entries,
		Cursor:  s.cursor,
		CanUndo: s.cursor > 0,
		CanRedo: s.cursor < len(s.entries),
	}
}

// Clear drops every entry.
func (s *HistoryService) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.cursor = 0
	s.mu.Unlock()
}

func (s *HistoryService) emit(ctx context.Context, action string, entry models.Action, actor string) {
	emitAudit(ctx, s.audit, s.logger, "history-service", &models.AuditLog{
		UserID:     optionalString(actor),
		Action:     action,
		Resource:   "manifest_action",
		ResourceID: optionalString(entry.ID),
		NewValues:  auditPayload(entry.Command),
	})
}
