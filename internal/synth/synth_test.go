package synth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/resilience"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Name() string { return "mock" }

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func TestAnalyze(t *testing.T) {
	llm := &mockCompleter{}
	rec := &model.PropertyRecord{Successful: true, Fields: map[string]string{"Zoning": "R1"}}
	llm.On("Complete", mock.Anything, SystemPrompt, BuildPrompt(rec, nil)).Return("## Summary\nZoned R1.", nil)

	got, err := New(llm, nil).Analyze(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, "## Summary\nZoned R1.", got)
	llm.AssertExpectations(t)
}

func TestAnalyze_RetriesTransient(t *testing.T) {
	llm := &mockCompleter{}
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil).Once()

	g := resilience.NewGuard(
		resilience.Policy{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond},
		resilience.DefaultBreakerSettings(),
	)
	got, err := New(llm, g).Analyze(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	llm.AssertNumberOfCalls(t, "Complete", 2)
}

func TestAnalyze_Error(t *testing.T) {
	llm := &mockCompleter{}
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("invalid key"))

	_, err := New(llm, nil).Analyze(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synth: analyze")
}

func TestChat(t *testing.T) {
	llm := &mockCompleter{}
	llm.On("Complete", mock.Anything, "sys", "What is the zoning?").Return("R1", nil)

	got, err := New(llm, nil).Chat(context.Background(), "sys", "What is the zoning?")
	require.NoError(t, err)
	assert.Equal(t, "R1", got)
}
