package search

import (
	"context"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/pkg/jina"
	"github.com/sells-group/property-research/pkg/tavily"
)

// Tavily adapts the Tavily client to Backend.
type Tavily struct {
	client tavily.Client
	depth  string
}

// NewTavily creates a Tavily backend. depth is the provider search depth
// ("basic" or "advanced"); empty uses advanced.
func NewTavily(c tavily.Client, depth string) *Tavily {
	if depth == "" {
		depth = tavily.DepthAdvanced
	}
	return &Tavily{client: c, depth: depth}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Query(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := t.client.Search(ctx, tavily.SearchRequest{
		Query:       query,
		SearchDepth: t.depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, model.SearchResult{
			Title:          r.Title,
			URL:            r.URL,
			Content:        r.Content,
			RelevanceScore: r.Score,
		})
	}
	return out, nil
}

// Jina adapts the Jina client to Backend. Scores are derived from rank.
type Jina struct {
	client jina.Client
}

// NewJina creates a Jina backend.
func NewJina(c jina.Client) *Jina { return &Jina{client: c} }

func (j *Jina) Name() string { return "jina" }

func (j *Jina) Query(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := j.client.Search(ctx, query, jina.WithCount(maxResults))
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.Data))
	for i, r := range resp.Data {
		out = append(out, model.SearchResult{
			Title:          r.Title,
			URL:            r.URL,
			Content:        r.Text(),
			RelevanceScore: jina.RankScore(i),
		})
	}
	return out, nil
}
