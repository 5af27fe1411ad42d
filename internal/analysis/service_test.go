package analysis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/pipeline"
	"github.com/sells-group/property-research/internal/tracker"
)

type runnerFunc func(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) *model.Envelope

func (f runnerFunc) Run(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) *model.Envelope {
	return f(ctx, req, sink)
}

func completedRunner() runnerFunc {
	return func(_ context.Context, req pipeline.Request, sink pipeline.ProgressSink) *model.Envelope {
		sink(20, "lookup")
		sink(95, "formatted")
		return &model.Envelope{
			Address: req.Address,
			Status:  model.TaskStatusCompleted,
			Summary: &model.Summary{AnalysisCompleteness: model.CompletenessHigh},
		}
	}
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("task-%d", n.Add(1)) }
}

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, r Runner, cfg Config) (*Service, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New(tracker.WithClock(func() time.Time { return fixedNow }))
	svc := New(r, tr, cfg, WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return fixedNow }))
	return svc, tr
}

func startWorkers(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRunPipeline_Completed(t *testing.T) {
	svc, tr := newService(t, completedRunner(), Config{})
	require.NoError(t, tr.Create("t1", "1600 Vine"))

	env := svc.RunPipeline(context.Background(), "t1", "1600 Vine", model.DepthComprehensive)

	assert.Equal(t, "t1", env.AnalysisID)
	assert.Equal(t, model.DepthComprehensive, env.AnalysisDepth)
	assert.Equal(t, fixedNow, env.Timestamp)

	task, ok := svc.Status("t1")
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "Analysis completed!", task.CurrentStep)
	assert.Same(t, env, task.Result)
}

func TestRunPipeline_StatusMapping(t *testing.T) {
	tests := []struct {
		status   model.TaskStatus
		wantStep string
		wantErr  string
	}{
		{model.TaskStatusFailedZimasSearch, "Address not found in ZIMAS", ""},
		{model.TaskStatusErrorZimasSearch, "ZIMAS search error occurred", "browser crashed"},
		{model.TaskStatusFailed, "Analysis failed", "browser crashed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := runnerFunc(func(_ context.Context, _ pipeline.Request, sink pipeline.ProgressSink) *model.Envelope {
				sink(20, "Searching ZIMAS property records...")
				return &model.Envelope{Status: tt.status, Error: "browser crashed"}
			})
			svc, tr := newService(t, r, Config{})
			require.NoError(t, tr.Create("t1", "1 Nowhere"))

			svc.RunPipeline(context.Background(), "t1", "1 Nowhere", model.DepthStandard)

			task, _ := svc.Status("t1")
			assert.Equal(t, tt.status, task.Status)
			assert.Equal(t, tt.wantStep, task.CurrentStep)
			assert.Equal(t, tt.wantErr, task.Error)
			// Progress stays at the last milestone reached.
			assert.Equal(t, 20, task.Progress)
		})
	}
}

func TestRunPipeline_NilEnvelope(t *testing.T) {
	r := runnerFunc(func(context.Context, pipeline.Request, pipeline.ProgressSink) *model.Envelope { return nil })
	svc, tr := newService(t, r, Config{})
	require.NoError(t, tr.Create("t1", "x"))

	env := svc.RunPipeline(context.Background(), "t1", "x", model.DepthBasic)
	assert.Equal(t, model.TaskStatusFailed, env.Status)
	assert.Equal(t, "x", env.Address)
}

func TestSubmit_RunsOnWorkers(t *testing.T) {
	svc, _ := newService(t, completedRunner(), Config{Workers: 2})
	startWorkers(t, svc)

	id, err := svc.Submit(context.Background(), "  1600 Vine ", model.DepthStandard)
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	assert.Eventually(t, func() bool {
		task, ok := svc.Status(id)
		return ok && task.Status == model.TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	task, _ := svc.Status(id)
	assert.Equal(t, "1600 Vine", task.Address)
	require.NotNil(t, task.Result)
	assert.Equal(t, id, task.Result.AnalysisID)
}

func TestSubmit_InvalidAddress(t *testing.T) {
	svc, tr := newService(t, completedRunner(), Config{})
	_, err := svc.Submit(context.Background(), "   ", model.DepthStandard)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, tr.Len())
}

func TestSubmit_AtCapacity(t *testing.T) {
	release := make(chan struct{})
	r := runnerFunc(func(context.Context, pipeline.Request, pipeline.ProgressSink) *model.Envelope {
		<-release
		return &model.Envelope{Status: model.TaskStatusCompleted}
	})
	svc, _ := newService(t, r, Config{Workers: 2, MaxActive: 2})
	startWorkers(t, svc)
	defer close(release)

	for range 2 {
		_, err := svc.Submit(context.Background(), "1600 Vine", model.DepthStandard)
		require.NoError(t, err)
	}
	_, err := svc.Submit(context.Background(), "1600 Vine", model.DepthStandard)
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.Equal(t, 2, svc.CountActive())
}

func TestAnalyze_ReturnsEnvelope(t *testing.T) {
	svc, _ := newService(t, completedRunner(), Config{Workers: 1})
	startWorkers(t, svc)

	env, id, err := svc.Analyze(context.Background(), "1600 Vine", model.DepthBasic)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, env.Status)
	assert.Equal(t, id, env.AnalysisID)
	assert.Equal(t, model.DepthBasic, env.AnalysisDepth)
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	var finished sync.WaitGroup
	finished.Add(1)
	r := runnerFunc(func(context.Context, pipeline.Request, pipeline.ProgressSink) *model.Envelope {
		defer finished.Done()
		<-release
		return &model.Envelope{Status: model.TaskStatusCompleted}
	})
	svc, _ := newService(t, r, Config{Workers: 1, SyncTimeout: 20 * time.Millisecond})
	startWorkers(t, svc)

	env, id, err := svc.Analyze(context.Background(), "1600 Vine", model.DepthStandard)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, env)

	task, ok := svc.Status(id)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.Equal(t, "analysis timed out", task.Error)
	require.NotNil(t, task.Result)
	assert.Equal(t, model.TaskStatusFailed, task.Result.Status)
	assert.Equal(t, "Analysis timed out", task.Result.Message)
	assert.Equal(t, "analysis timed out", task.Result.Error)
	assert.Equal(t, "1600 Vine", task.Result.Address)
	assert.Equal(t, id, task.Result.AnalysisID)
	assert.NotEmpty(t, task.Result.StepFailed)

	// The worker still finishes and its result wins.
	close(release)
	finished.Wait()
	assert.Eventually(t, func() bool {
		task, _ := svc.Status(id)
		return task.Status == model.TaskStatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	svc, _ := newService(t, completedRunner(), Config{Workers: 1})
	// No workers: the job is queued but never picked up.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, id, err := svc.Analyze(ctx, "1600 Vine", model.DepthStandard)
	require.Error(t, err)
	task, _ := svc.Status(id)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, model.TaskStatusFailed, task.Result.Status)
	assert.Equal(t, "Analysis cancelled", task.Result.Message)
	assert.Equal(t, "Initializing...", task.Result.StepFailed)
}

func TestSubmit_QueueFullLeavesNoTask(t *testing.T) {
	// No workers: timed-out sync jobs stay queued but no longer count as active.
	svc, tr := newService(t, completedRunner(), Config{Workers: 1, MaxActive: 1, SyncTimeout: 5 * time.Millisecond})

	for range 2 {
		_, _, err := svc.Analyze(context.Background(), "1600 Vine", model.DepthStandard)
		require.ErrorIs(t, err, ErrTimeout)
	}
	require.Zero(t, svc.CountActive())

	id, err := svc.Submit(context.Background(), "1600 Vine", model.DepthStandard)
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.Empty(t, id)
	assert.Equal(t, 2, tr.Len())
}

func TestEvictOld(t *testing.T) {
	now := fixedNow
	tr := tracker.New(tracker.WithClock(func() time.Time { return now }))
	svc := New(completedRunner(), tr, Config{})

	require.NoError(t, tr.Create("done", "a"))
	require.NoError(t, tr.Create("live", "b"))
	tr.Update("done", tracker.SetStatus(model.TaskStatusCompleted))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, svc.EvictOld(time.Hour))
	_, ok := svc.Status("live")
	assert.True(t, ok)
	assert.Len(t, svc.Tasks(), 1)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []model.TaskStatus
}

func (o *recordingObserver) RunFinished(status model.TaskStatus, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestRunPipeline_NotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	tr := tracker.New()
	svc := New(completedRunner(), tr, Config{}, WithObserver(obs))

	id, err := svc.CreateTask("1600 Vine St")
	require.NoError(t, err)
	svc.RunPipeline(context.Background(), id, "1600 Vine St", model.DepthStandard)

	assert.Equal(t, []model.TaskStatus{model.TaskStatusCompleted}, obs.statuses)
}
