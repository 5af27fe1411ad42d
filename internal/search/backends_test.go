package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-research/pkg/jina"
	"github.com/sells-group/property-research/pkg/tavily"
)

func TestTavilyBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"title":"Zoning","url":"https://z.example","content":"C4","score":0.88}]}`))
	}))
	defer srv.Close()

	b := NewTavily(tavily.NewClient("k", tavily.WithBaseURL(srv.URL)), "")
	assert.Equal(t, "tavily", b.Name())

	got, err := b.Query(context.Background(), "1600 Vine zoning", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Zoning", got[0].Title)
	assert.InDelta(t, 0.88, got[0].RelevanceScore, 1e-9)
}

func TestJinaBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":[
			{"title":"First","url":"https://1.example","content":"one"},
			{"title":"Second","url":"https://2.example","description":"two"}
		]}`))
	}))
	defer srv.Close()

	b := NewJina(jina.NewClient("k", jina.WithBaseURL(srv.URL)))
	got, err := b.Query(context.Background(), "1600 Vine", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.9, got[1].RelevanceScore, 1e-9)
	assert.Equal(t, "two", got[1].Content)
}
