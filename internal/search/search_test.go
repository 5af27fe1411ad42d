package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-research/internal/model"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Query(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

func TestQueries(t *testing.T) {
	t.Parallel()

	std := Queries("1600 Vine", model.DepthStandard, "C4")
	require.Len(t, std, 5)
	assert.Equal(t, "1600 Vine Los Angeles property information", std[0])
	assert.Equal(t, "1600 Vine recent sales comparable properties", std[4])

	assert.Len(t, Queries("1600 Vine", model.DepthBasic, "C4"), 2)

	comp := Queries("1600 Vine", model.DepthComprehensive, "C4-2D-SN")
	require.Len(t, comp, 6)
	assert.Equal(t, "Los Angeles C4-2D-SN zoning requirements", comp[5])

	assert.Len(t, Queries("1600 Vine", model.DepthComprehensive, ""), 5)
}

func TestSearch_MergesAndSortsByScore(t *testing.T) {
	t.Parallel()

	b := &mockBackend{}
	b.On("Query", mock.Anything, "1600 Vine Los Angeles property information", 5).
		Return([]model.SearchResult{{Title: "low", RelevanceScore: 0.2}, {Title: "high", RelevanceScore: 0.95}}, nil)
	b.On("Query", mock.Anything, "1600 Vine zoning regulations", 5).
		Return([]model.SearchResult{{Title: "mid", RelevanceScore: 0.5}}, nil)

	s := New(b, Config{}, nil)
	got, err := s.Search(context.Background(), "1600 Vine", model.DepthBasic)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{got[0].Title, got[1].Title, got[2].Title})
	b.AssertExpectations(t)
}

func TestSearch_SkipsFailedQueries(t *testing.T) {
	t.Parallel()

	b := &mockBackend{}
	b.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "zoning")
	}), mock.Anything).Return(nil, errors.New("invalid query"))
	b.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.SearchResult{{Title: "ok", RelevanceScore: 0.4}}, nil)

	got, err := New(b, Config{MaxResults: 3}, nil).Search(context.Background(), "1600 Vine", model.DepthStandard)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestSearch_AllQueriesFail(t *testing.T) {
	t.Parallel()

	b := &mockBackend{}
	b.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	got, err := New(b, Config{}, nil).Search(context.Background(), "1600 Vine", model.DepthBasic)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "all 2 queries failed")
}

func TestSearch_EmptyResultsIsNotAnError(t *testing.T) {
	t.Parallel()

	b := &mockBackend{}
	b.On("Query", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchResult{}, nil)

	got, err := New(b, Config{}, nil).Search(context.Background(), "nowhere", model.DepthBasic)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type countingBackend struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (c *countingBackend) Name() string { return "counting" }

func (c *countingBackend) Query(context.Context, string, int) ([]model.SearchResult, error) {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active--
		c.mu.Unlock()
	}()
	return nil, nil
}

func TestSearch_RespectsConcurrency(t *testing.T) {
	t.Parallel()

	b := &countingBackend{}
	_, err := New(b, Config{Concurrency: 1}, nil).
		Search(model.WithZoning(context.Background(), "R1"), "1600 Vine", model.DepthComprehensive)
	require.NoError(t, err)
	assert.Equal(t, 1, b.maxSeen)
}

func TestSearch_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &mockBackend{}
	_, err := New(b, Config{RatePerSec: 0.001}, nil).Search(ctx, "1600 Vine", model.DepthBasic)
	require.Error(t, err)
	b.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}
