package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

// DefaultInterval is how often the scheduler re-checks templates.
const DefaultInterval = time.Hour

// Store is the persistence the scheduler needs. CreateInstanceIfDue must
// re-read the template inside a transaction, call build with the fresh
// record and, when build reports the template is due, insert the returned
// instance and advance the template's updated_at in the same transaction.
// It returns nil when the template was no longer due.
type Store interface {
	ListRecurringTemplates(ctx context.Context) ([]model.Chore, error)
	CreateInstanceIfDue(ctx context.Context, templateID int64, now time.Time, build func(template model.Chore) (model.Chore, bool)) (*model.Chore, error)
}

// Scheduler periodically materializes recurring chores.
type Scheduler struct {
	mu        sync.Mutex
	runMu     sync.Mutex
	store     Store
	now       func() time.Time
	interval  time.Duration
	onCreated func(model.Chore)
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler. now supplies the wall clock (already in
// the household's time zone); onCreated may be nil.
func NewScheduler(store Store, now func() time.Time, interval time.Duration, onCreated func(model.Chore), logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     store,
		now:       now,
		interval:  interval,
		onCreated: onCreated,
		logger:    logger,
	}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	created, err := s.Run(ctx)
	if err != nil {
		s.logger.Error("recurring chores pass failed", "error", err)
		return
	}
	if len(created) > 0 {
		s.logger.Info("recurring chores created", "count", len(created))
	}
}

// Run evaluates every template once. A pass that starts while another is
// still running returns immediately with nothing created.
func (s *Scheduler) Run(ctx context.Context) ([]model.Chore, error) {
	if !s.runMu.TryLock() {
		s.logger.Debug("recurring chores pass already running, skipping")
		return nil, nil
	}
	defer s.runMu.Unlock()

	templates, err := s.store.ListRecurringTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}

	now := s.now()
	build := func(t model.Chore) (model.Chore, bool) {
		if !ShouldCreateInstance(t, t.UpdatedAt, now) {
			return model.Chore{}, false
		}
		return NewInstance(t, now), true
	}

	var created []model.Chore
	for _, t := range templates {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if !ShouldCreateInstance(t, t.UpdatedAt, now) {
			continue
		}

		inst, err := s.store.CreateInstanceIfDue(ctx, t.ID, now, build)
		if err != nil {
			s.logger.Error("create recurring instance", "template_id", t.ID, "error", err)
			continue
		}
		if inst == nil {
			continue
		}

		s.logger.Debug("recurring instance created", "template_id", t.ID, "chore_id", inst.ID, "pattern", t.RecurrencePattern)
		created = append(created, *inst)
		if s.onCreated != nil {
			s.onCreated(*inst)
		}
	}
	return created, nil
}
