package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

type changeFeed interface {
	Subscribe(prefix string, fn func(store.Event)) (unsubscribe func())
}

// BoardService publishes countdown board snapshots on every tick and on
// every store change under the watched prefixes. Each subscriber holds only
// the latest snapshot; slow readers skip intermediate ones.
type BoardService struct {
	loads    loadLister
	settings settingsReader
	feed     changeFeed
	watch    []string
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int]chan dto.BoardSnapshot
	nextID int
	latest *dto.BoardSnapshot
}

// BoardServiceOption configures the board publisher.
type BoardServiceOption func(*BoardService)

// WithBoardClock overrides the wall clock.
func WithBoardClock(now func() time.Time) BoardServiceOption {
	return func(s *BoardService) {
		if now != nil {
			s.now = func() time.Time { return now().UTC() }
		}
	}
}

// WithBoardInterval sets the tick interval.
func WithBoardInterval(d time.Duration) BoardServiceOption {
	return func(s *BoardService) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewBoardService constructs the publisher. feed may be nil, in which case
// only the ticker drives updates.
func NewBoardService(loads loadLister, settings settingsReader, feed changeFeed, watch []string, logger *zap.Logger, opts ...BoardServiceOption) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BoardService{
		loads:    loads,
		settings: settings,
		feed:     feed,
		watch:    watch,
		interval: time.Second,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		subs:     make(map[int]chan dto.BoardSnapshot),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Snapshot computes the board at the current instant.
func (s *BoardService) Snapshot(ctx context.Context) (*dto.BoardSnapshot, error) {
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := engine.ActiveLoads(loads)
	rows := make([]dto.BoardLoad, 0, len(loads))
	for _, l := range loads {
		rows = append(rows, dto.BoardLoad{
			Load:           l,
			Countdown:      engine.ComputeCountdown(l, active, settings.MinutesBetweenLoads, now),
			SeatsUsed:      engine.SeatsUsed(l.Assignments),
			SeatsAvailable: engine.SeatsAvailable(l),
		})
	}
	return &dto.BoardSnapshot{GeneratedAt: now, Settings: settings, Loads: rows}, nil
}

// Subscribe returns a channel receiving board snapshots and a cancel func.
// The most recent snapshot, if any, is delivered immediately.
func (s *BoardService) Subscribe() (<-chan dto.BoardSnapshot, func()) {
	ch := make(chan dto.BoardSnapshot, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.latest != nil {
		ch <- *s.latest
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Run publishes until ctx is cancelled.
func (s *BoardService) Run(ctx context.Context) {
	changed := make(chan struct{}, 1)
	if s.feed != nil {
		for _, prefix := range s.watch {
			unsubscribe := s.feed.Subscribe(prefix, func(store.Event) {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			defer unsubscribe()
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish(ctx)
		case <-changed:
			s.publish(ctx)
		}
	}
}

func (s *BoardService) publish(ctx context.Context) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("board snapshot failed", zap.Error(err))
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snapshot
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- *snapshot
	}
}

// Countdown returns the live countdown for a single load.
func (s *BoardService) Countdown(ctx context.Context, loadID string) (*engine.Countdown, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range snapshot.Loads {
		if row.Load.ID == loadID {
			cd := row.Countdown
			return &cd, nil
		}
	}
	return nil, appErrors.Clonef(appErrors.ErrNotFound, "load %s not found", loadID)
}
