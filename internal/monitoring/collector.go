package monitoring

import (
	"sync"
	"time"

	"github.com/sells-group/property-research/internal/model"
)

// MetricsSnapshot holds a point-in-time view of service health.
type MetricsSnapshot struct {
	// Live tasks currently held by the tracker.
	TasksTracked int                      `json:"tasks_tracked"`
	TasksActive  int                      `json:"tasks_active"`
	ByStatus     map[model.TaskStatus]int `json:"by_status"`

	// Runs finished within the lookback window.
	RunsFinished  int     `json:"runs_finished"`
	RunsCompleted int     `json:"runs_completed"`
	RunsNotFound  int     `json:"runs_not_found"`
	RunsFailed    int     `json:"runs_failed"`
	FailRate      float64 `json:"fail_rate"`

	// Circuit state per outbound service.
	Breakers map[string]string `json:"breakers,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// TaskLister lists the tasks currently tracked.
type TaskLister interface {
	List() []model.Task
}

// BreakerStates reports circuit breaker state by service name.
type BreakerStates interface {
	States() map[string]string
}

type finish struct {
	status model.TaskStatus
	at     time.Time
}

// Collector gathers metrics from the tracker and the runs it has been told
// about. Terminal tasks leave the tracker after a short retention, so run
// outcomes are recorded separately through RunFinished.
type Collector struct {
	tasks    TaskLister
	breakers BreakerStates
	now      func() time.Time

	mu       sync.Mutex
	finished []finish
	maxAge   time.Duration
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCollectorClock overrides the collector's time source.
func WithCollectorClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// WithRetention bounds how long finished runs are remembered.
func WithRetention(d time.Duration) CollectorOption {
	return func(c *Collector) { c.maxAge = d }
}

// NewCollector creates a metrics collector. breakers may be nil.
func NewCollector(tasks TaskLister, breakers BreakerStates, opts ...CollectorOption) *Collector {
	c := &Collector{
		tasks:    tasks,
		breakers: breakers,
		now:      time.Now,
		maxAge:   24 * time.Hour,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunFinished records the outcome of a finished run.
func (c *Collector) RunFinished(status model.TaskStatus, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, finish{status: status, at: at})
	c.pruneLocked()
}

func (c *Collector) pruneLocked() {
	cutoff := c.now().Add(-c.maxAge)
	i := 0
	for i < len(c.finished) && c.finished[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.finished = append(c.finished[:0], c.finished[i:]...)
	}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(lookbackHours int) *MetricsSnapshot {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByStatus:      make(map[model.TaskStatus]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	for _, t := range c.tasks.List() {
		snap.TasksTracked++
		snap.ByStatus[t.Status]++
		if t.Status.IsActive() {
			snap.TasksActive++
		}
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	c.mu.Lock()
	for _, f := range c.finished {
		if f.at.Before(cutoff) {
			continue
		}
		snap.RunsFinished++
		switch f.status {
		case model.TaskStatusCompleted:
			snap.RunsCompleted++
		case model.TaskStatusFailedZimasSearch:
			// Unknown address, not a service fault.
			snap.RunsNotFound++
		default:
			snap.RunsFailed++
		}
	}
	c.mu.Unlock()

	if snap.RunsFinished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsFinished)
	}

	if c.breakers != nil {
		snap.Breakers = c.breakers.States()
	}
	return snap
}
