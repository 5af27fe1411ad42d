// Package tracker keeps the in-memory registry of analysis tasks shared
// between pipeline workers and status pollers.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/model"
)

var (
	// ErrDuplicateTask is returned by Create when the id is already tracked.
	ErrDuplicateTask = eris.New("tracker: duplicate task")
	// ErrAtCapacity is returned by CreateWithLimit when the active cap is reached.
	ErrAtCapacity = eris.New("tracker: at capacity")
)

// Change mutates one field of a task. Changes are applied in order under the
// tracker lock.
type Change func(*model.Task)

// SetStatus sets the task status.
func SetStatus(s model.TaskStatus) Change {
	return func(t *model.Task) { t.Status = s }
}

// SetProgress sets the progress percentage, clamped to 0..100.
func SetProgress(p int) Change {
	return func(t *model.Task) { t.Progress = min(max(p, 0), 100) }
}

// SetStep sets the human-readable current step.
func SetStep(step string) Change {
	return func(t *model.Task) { t.CurrentStep = step }
}

// SetResult attaches the final envelope.
func SetResult(env *model.Envelope) Change {
	return func(t *model.Task) { t.Result = env }
}

// SetError records an error string.
func SetError(msg string) Change {
	return func(t *model.Task) { t.Error = msg }
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(tr *Tracker) { tr.now = now }
}

// Tracker is a concurrency-safe map of task id to task. The lock is held only
// for single map operations.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
	now   func() time.Time
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	tr := &Tracker{
		tasks: make(map[string]*model.Task),
		now:   time.Now,
	}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

// Create inserts a new task in the initializing state.
func (tr *Tracker) Create(id, address string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.insertLocked(id, address)
}

// CreateWithLimit inserts a new task only if fewer than limit tasks are
// active. The check and the insert happen under one lock acquisition.
func (tr *Tracker) CreateWithLimit(id, address string, limit int) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if limit > 0 && tr.countActiveLocked() >= limit {
		return ErrAtCapacity
	}
	return tr.insertLocked(id, address)
}

func (tr *Tracker) insertLocked(id, address string) error {
	if _, ok := tr.tasks[id]; ok {
		return eris.Wrapf(ErrDuplicateTask, "id %s", id)
	}
	now := tr.now()
	tr.tasks[id] = &model.Task{
		ID:          id,
		Address:     address,
		Status:      model.TaskStatusInitializing,
		CurrentStep: "Initializing...",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

// Update applies changes to the task and refreshes UpdatedAt. Unknown ids are
// logged and ignored. It reports whether the task existed.
func (tr *Tracker) Update(id string, changes ...Change) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, ok := tr.tasks[id]
	if !ok {
		zap.L().Warn("tracker: update for unknown task", zap.String("task_id", id))
		return false
	}
	for _, c := range changes {
		c(t)
	}
	t.UpdatedAt = tr.now()
	return true
}

// Delete removes the task regardless of status and reports whether it existed.
func (tr *Tracker) Delete(id string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.tasks[id]; !ok {
		return false
	}
	delete(tr.tasks, id)
	return true
}

// Get returns a copy of the task.
func (tr *Tracker) Get(id string) (model.Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, ok := tr.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return *t, true
}

// CountActive returns the number of initializing or processing tasks.
func (tr *Tracker) CountActive() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.countActiveLocked()
}

func (tr *Tracker) countActiveLocked() int {
	n := 0
	for _, t := range tr.tasks {
		if t.Status.IsActive() {
			n++
		}
	}
	return n
}

// Len returns the number of tracked tasks.
func (tr *Tracker) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.tasks)
}

// List returns copies of all tasks ordered by creation time.
func (tr *Tracker) List() []model.Task {
	tr.mu.Lock()
	out := make([]model.Task, 0, len(tr.tasks))
	for _, t := range tr.tasks {
		out = append(out, *t)
	}
	tr.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// EvictOlderThan removes terminal tasks last updated more than age ago and
// returns how many were removed. All four terminal statuses are evicted:
// completed, failed, failed_zimas_search and error_zimas_search. Active tasks
// are never evicted.
func (tr *Tracker) EvictOlderThan(age time.Duration) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	cutoff := tr.now().Add(-age)
	removed := 0
	for id, t := range tr.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			delete(tr.tasks, id)
			removed++
		}
	}
	return removed
}

// RunSweeper evicts terminal tasks older than retention every interval until
// ctx is cancelled.
func (tr *Tracker) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	log := zap.L().With(zap.String("component", "tracker.sweeper"))
	log.Info("starting task sweeper",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("task sweeper stopped")
			return
		case <-ticker.C:
			if n := tr.EvictOlderThan(retention); n > 0 {
				log.Debug("tracker: evicted finished tasks", zap.Int("count", n))
			}
		}
	}
}
