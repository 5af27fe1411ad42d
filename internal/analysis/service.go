// Package analysis is the service layer over the pipeline: it admits
// requests, runs them on a fixed worker pool and records progress in the
// task tracker.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/pipeline"
	"github.com/sells-group/property-research/internal/tracker"
)

var (
	// ErrTimeout is returned by Analyze when the run outlives the sync timeout.
	ErrTimeout = eris.New("analysis: timed out")
	// ErrInvalidAddress is returned for an empty address.
	ErrInvalidAddress = eris.New("analysis: invalid address")
	// ErrAtCapacity is returned when the active task limit is reached.
	ErrAtCapacity = tracker.ErrAtCapacity
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) *model.Envelope
}

// Observer is told about every finished run.
type Observer interface {
	RunFinished(status model.TaskStatus, at time.Time)
}

// Config sizes the service.
type Config struct {
	Workers     int
	MaxActive   int
	SyncTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.MaxActive <= 0 {
		c.MaxActive = 10
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 300 * time.Second
	}
	return c
}

type job struct {
	id      string
	address string
	depth   model.AnalysisDepth
	done    chan *model.Envelope
}

// Service admits, queues and runs analyses.
type Service struct {
	runner    Runner
	tasks     *tracker.Tracker
	cfg       Config
	jobs      chan job
	newID     func() string
	now       func() time.Time
	elapsed   func(time.Time) time.Duration
	observers []Observer
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithClock overrides the time source used for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.elapsed = func(start time.Time) time.Duration { return now().Sub(start) }
	}
}

// WithObserver registers o for run completions.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// New creates a Service. Call Run to start the workers.
func New(runner Runner, tasks *tracker.Tracker, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		runner:  runner,
		tasks:   tasks,
		cfg:     cfg,
		jobs:    make(chan job, cfg.MaxActive+cfg.Workers),
		newID:   uuid.NewString,
		now:     time.Now,
		elapsed: time.Since,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run starts the worker pool and blocks until ctx is done and every worker
// has returned.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range s.cfg.Workers {
		g.Go(func() error {
			log := zap.L().With(zap.Int("worker", i))
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-s.jobs:
					log.Debug("analysis: job picked up", zap.String("task_id", j.id))
					env := s.RunPipeline(ctx, j.id, j.address, j.depth)
					if j.done != nil {
						j.done <- env
					}
				}
			}
		})
	}
	zap.L().Info("analysis: workers started", zap.Int("workers", s.cfg.Workers))
	return g.Wait()
}

// CreateTask registers a new task if the active limit allows it.
func (s *Service) CreateTask(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrInvalidAddress
	}
	id := s.newID()
	if err := s.tasks.CreateWithLimit(id, address, s.cfg.MaxActive); err != nil {
		return "", err
	}
	return id, nil
}

// Submit creates a task and queues it for the worker pool. It never blocks.
// When the queue is full the task is removed again and ErrAtCapacity returned.
func (s *Service) Submit(_ context.Context, address string, depth model.AnalysisDepth) (string, error) {
	id, err := s.CreateTask(address)
	if err != nil {
		return "", err
	}
	select {
	case s.jobs <- job{id: id, address: strings.TrimSpace(address), depth: depth}:
	default:
		s.tasks.Delete(id)
		return "", eris.Wrap(ErrAtCapacity, "analysis: queue full")
	}
	zap.L().Info("analysis: task queued", zap.String("task_id", id), zap.String("address", address))
	return id, nil
}

// Analyze runs an analysis on the worker pool and waits for the envelope.
// On timeout the task is marked failed and ErrTimeout is returned; the
// worker keeps running and its result still lands in the tracker.
func (s *Service) Analyze(ctx context.Context, address string, depth model.AnalysisDepth) (*model.Envelope, string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, "", ErrInvalidAddress
	}
	id := s.newID()
	if err := s.tasks.Create(id, address); err != nil {
		return nil, "", err
	}

	timer := time.NewTimer(s.cfg.SyncTimeout)
	defer timer.Stop()

	done := make(chan *model.Envelope, 1)
	select {
	case s.jobs <- job{id: id, address: address, depth: depth, done: done}:
	case <-timer.C:
		s.Abandon(id, "Analysis timed out", "analysis timed out")
		return nil, id, ErrTimeout
	case <-ctx.Done():
		s.Abandon(id, "Analysis cancelled", "request cancelled")
		return nil, id, eris.Wrap(ctx.Err(), "analysis: enqueue")
	}

	select {
	case env := <-done:
		return env, id, nil
	case <-timer.C:
		s.Abandon(id, "Analysis timed out", "analysis timed out")
		return nil, id, ErrTimeout
	case <-ctx.Done():
		s.Abandon(id, "Analysis cancelled", "request cancelled")
		return nil, id, eris.Wrap(ctx.Err(), "analysis: wait")
	}
}

// RunPipeline runs the pipeline for an existing task and records the outcome.
func (s *Service) RunPipeline(ctx context.Context, id, address string, depth model.AnalysisDepth) *model.Envelope {
	start := s.now()
	log := zap.L().With(zap.String("task_id", id), zap.String("address", address))

	s.tasks.Update(id,
		tracker.SetStatus(model.TaskStatusProcessing),
		tracker.SetProgress(10),
		tracker.SetStep("Initializing analysis system..."),
	)
	sink := func(pct int, msg string) {
		s.tasks.Update(id, tracker.SetProgress(pct), tracker.SetStep(msg))
	}

	env := s.runner.Run(ctx, pipeline.Request{Address: address, Depth: depth}, sink)
	if env == nil {
		env = &model.Envelope{Status: model.TaskStatusFailed, Error: "pipeline returned no result"}
	}
	env.Address = address
	env.AnalysisID = id
	env.AnalysisDepth = depth
	env.Timestamp = s.now()

	s.tasks.Update(id, terminalChanges(env)...)
	logRun(log, env, s.elapsed(start))
	s.notify(env.Status, env.Timestamp)
	return env
}

// terminalChanges maps the envelope status onto the task. Only a completed
// run moves progress to 100; failures keep the last milestone reached.
func terminalChanges(env *model.Envelope) []tracker.Change {
	changes := []tracker.Change{tracker.SetResult(env)}
	switch env.Status {
	case model.TaskStatusCompleted:
		return append(changes,
			tracker.SetStatus(model.TaskStatusCompleted),
			tracker.SetProgress(100),
			tracker.SetStep("Analysis completed!"),
		)
	case model.TaskStatusFailedZimasSearch:
		return append(changes,
			tracker.SetStatus(model.TaskStatusFailedZimasSearch),
			tracker.SetStep("Address not found in ZIMAS"),
		)
	case model.TaskStatusErrorZimasSearch:
		return append(changes,
			tracker.SetStatus(model.TaskStatusErrorZimasSearch),
			tracker.SetStep("ZIMAS search error occurred"),
			tracker.SetError(env.Error),
		)
	default:
		return append(changes,
			tracker.SetStatus(model.TaskStatusFailed),
			tracker.SetStep("Analysis failed"),
			tracker.SetError(env.Error),
		)
	}
}

// Abandon marks a task failed without waiting for its run. The task gets a
// failed envelope naming the step it had reached; a run that finishes later
// still replaces it.
func (s *Service) Abandon(id, message, cause string) {
	at := s.now()
	s.tasks.Update(id,
		func(t *model.Task) {
			t.Result = &model.Envelope{
				Address:    t.Address,
				Status:     model.TaskStatusFailed,
				Message:    message,
				Error:      cause,
				StepFailed: t.CurrentStep,
				AnalysisID: t.ID,
				Timestamp:  at,
			}
		},
		tracker.SetStatus(model.TaskStatusFailed),
		tracker.SetStep("Analysis failed"),
		tracker.SetError(cause),
	)
	zap.L().Warn("analysis: task abandoned", zap.String("task_id", id), zap.String("cause", cause))
}

func (s *Service) notify(status model.TaskStatus, at time.Time) {
	for _, o := range s.observers {
		o.RunFinished(status, at)
	}
}

// Status returns a snapshot of the task.
func (s *Service) Status(id string) (model.Task, bool) { return s.tasks.Get(id) }

// CountActive returns the number of initializing or processing tasks.
func (s *Service) CountActive() int { return s.tasks.CountActive() }

// EvictOld removes terminal tasks last updated more than age ago.
func (s *Service) EvictOld(age time.Duration) int { return s.tasks.EvictOlderThan(age) }

// Tasks returns every tracked task.
func (s *Service) Tasks() []model.Task { return s.tasks.List() }
