package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
)

type balanceSource interface {
	CurrentBalances(ctx context.Context) (map[string]float64, error)
}

type loadReader interface {
	Get(ctx context.Context, id string) (*models.Load, error)
	List(ctx context.Context) ([]models.Load, error)
}

type queueReader interface {
	Get(ctx context.Context, id string) (*models.QueueEntry, error)
}

// SuggestionService ranks instructors for a queued student so the one with
// the lowest rotation balance is offered first.
type SuggestionService struct {
	queue       queueReader
	loads       loadReader
	instructors instructorLister
	settings    settingsReader
	balances    balanceSource
	logger      *zap.Logger
}

// NewSuggestionService constructs the service.
func NewSuggestionService(queue queueReader, loads loadReader, instructors instructorLister, settings settingsReader, balances balanceSource, logger *zap.Logger) *SuggestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{
		queue:       queue,
		loads:       loads,
		instructors: instructors,
		settings:    settings,
		balances:    balances,
		logger:      logger,
	}
}

// Suggest lists qualified, clocked-in instructors for the queue entry. With a
// target load, instructors not yet available for its position or already
// flying on it are left out. A requested instructor always sorts first.
func (s *SuggestionService) Suggest(ctx context.Context, queueEntryID, loadID string) ([]models.InstructorSuggestion, error) {
	entry, err := s.queue.Get(ctx, queueEntryID)
	if err != nil {
		return nil, notWaiting(queueEntryID, err)
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	var target *models.Load
	if loadID != "" {
		if target, err = s.loads.Get(ctx, loadID); err != nil {
			return nil, err
		}
	}
	roster, err := s.instructors.List(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := s.balances.CurrentBalances(ctx)
	if err != nil {
		return nil, err
	}

	candidate := entry.Assignment("", "", entry.QueueTimestamp)
	active := engine.ActiveLoads(loads)
	if target != nil {
		active = engine.ExcludeLoad(active, target.ID)
	}
	onTarget := map[string]struct{}{}
	if target != nil {
		for _, a := range target.Assignments {
			onTarget[a.InstructorID] = struct{}{}
			onTarget[a.VideoInstructorID] = struct{}{}
		}
	}

	out := make([]models.InstructorSuggestion, 0)
	for _, inst := range roster {
		if !engine.Qualified(inst, candidate) {
			continue
		}
		if _, busy := onTarget[inst.ID]; busy {
			continue
		}
		suggestion := models.InstructorSuggestion{
			Instructor: inst,
			Balance:    balances[inst.ID],
			Requested:  entry.IsRequest && entry.RequestedInstructorID == inst.ID,
		}
		if next, constrained := engine.NextAvailablePosition(inst.ID, active, settings.InstructorCycleTime, settings.MinutesBetweenLoads); constrained {
			if target != nil && target.Position < next {
				continue
			}
			suggestion.NextAvailablePosition = &next
		}
		out = append(out, suggestion)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Requested != out[j].Requested {
			return out[i].Requested
		}
		if out[i].Balance != out[j].Balance {
			return out[i].Balance < out[j].Balance
		}
		return strings.ToLower(out[i].Instructor.Name) < strings.ToLower(out[j].Instructor.Name)
	})
	s.logger.Debug("instructor suggestions computed",
		zap.String("queue_entry_id", queueEntryID),
		zap.String("load_id", loadID),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}
