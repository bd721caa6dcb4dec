// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/docrank/pkg/types"
)

// fakeScorer scores each text from a lookup table, or returns canned
// results or an error when configured.
type fakeScorer struct {
	scores map[string]float64
	ranked []Ranked
	err    error

	calls    int
	gotQuery string
	gotTexts []string
	gotTopN  int
}

func (f *fakeScorer) Rank(_ context.Context, query string, texts []string, topN int) ([]Ranked, error) {
	f.calls++
	f.gotQuery, f.gotTexts, f.gotTopN = query, texts, topN
	if f.err != nil {
		return nil, f.err
	}
	if f.ranked != nil {
		return f.ranked, nil
	}
	ranked := make([]Ranked, len(texts))
	for i, text := range texts {
		ranked[i] = Ranked{Index: i, Score: f.scores[text]}
	}
	return topRanked(ranked, topN), nil
}

func nodes(contents ...string) []*schema.Document {
	docs := make([]*schema.Document, len(contents))
	for i, c := range contents {
		docs[i] = (&schema.Document{ID: fmt.Sprintf("n%d", i), Content: c}).WithScore(0.5)
	}
	return docs
}

func newTestReranker(t *testing.T, topN int, s Scorer) *Reranker {
	t.Helper()
	r, err := NewReranker(types.RerankConfig{TopN: topN}, s, nil)
	require.NoError(t, err)
	return r
}

func TestPostprocessNodes(t *testing.T) {
	scores := map[string]float64{
		"paris is the capital of france": 0.98,
		"berlin is in germany":           0.12,
		"the eiffel tower is in paris":   0.71,
		"bread recipes":                  0.01,
		"france borders spain":           0.33,
	}
	input := nodes(
		"berlin is in germany",
		"paris is the capital of france",
		"bread recipes",
		"the eiffel tower is in paris",
		"france borders spain",
	)

	tests := []struct {
		name        string
		topN        int
		wantContent []string
	}{
		{
			name:        "keeps top three",
			topN:        3,
			wantContent: []string{"paris is the capital of france", "the eiffel tower is in paris", "france borders spain"},
		},
		{
			name:        "top one",
			topN:        1,
			wantContent: []string{"paris is the capital of france"},
		},
		{
			name: "cutoff larger than candidate set",
			topN: 10,
			wantContent: []string{
				"paris is the capital of france",
				"the eiffel tower is in paris",
				"france borders spain",
				"berlin is in germany",
				"bread recipes",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &fakeScorer{scores: scores}
			r := newTestReranker(t, tt.topN, scorer)

			got, err := r.PostprocessNodes(context.Background(), "capital of france", input)
			require.NoError(t, err)

			require.Len(t, got, len(tt.wantContent))
			for i, doc := range got {
				assert.Equal(t, tt.wantContent[i], doc.Content)
				assert.Equal(t, scores[doc.Content], doc.Score())
			}
			assert.Equal(t, 1, scorer.calls)
			assert.Equal(t, "capital of france", scorer.gotQuery)
			assert.Equal(t, tt.topN, scorer.gotTopN)
		})
	}
}

func TestPostprocessNodes_EmptyCandidatesSkipsModel(t *testing.T) {
	scorer := &fakeScorer{}
	r := newTestReranker(t, 3, scorer)

	got, err := r.PostprocessNodes(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Zero(t, scorer.calls)
}

func TestPostprocessNodes_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		query string
		nodes []*schema.Document
	}{
		{name: "empty query", query: "", nodes: nodes("a")},
		{name: "blank query", query: "  \t", nodes: nodes("a")},
		{name: "nil node", query: "q", nodes: []*schema.Document{{Content: "a"}, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &fakeScorer{}
			r := newTestReranker(t, 3, scorer)

			_, err := r.PostprocessNodes(context.Background(), tt.query, tt.nodes)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, scorer.calls)
		})
	}
}

func TestPostprocessNodes_ScoringErrors(t *testing.T) {
	tests := []struct {
		name    string
		scorer  *fakeScorer
		wantMsg string
	}{
		{
			name:    "model failure",
			scorer:  &fakeScorer{err: errors.New("container exited with code 137")},
			wantMsg: "code 137",
		},
		{
			name:    "index out of range",
			scorer:  &fakeScorer{ranked: []Ranked{{Index: 0, Score: 1}, {Index: 7, Score: 0.5}}},
			wantMsg: "out of range",
		},
		{
			name:    "negative index",
			scorer:  &fakeScorer{ranked: []Ranked{{Index: -1, Score: 1}}},
			wantMsg: "out of range",
		},
		{
			name:    "duplicate index",
			scorer:  &fakeScorer{ranked: []Ranked{{Index: 1, Score: 1}, {Index: 1, Score: 0.5}}},
			wantMsg: "scored twice",
		},
		{
			name:    "too few results",
			scorer:  &fakeScorer{ranked: []Ranked{{Index: 1, Score: 1}}},
			wantMsg: "returned 1 results, want 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReranker(t, 2, tt.scorer)
			input := nodes("a", "b", "c")

			got, err := r.PostprocessNodes(context.Background(), "q", input)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrScoring)
			assert.Contains(t, err.Error(), tt.wantMsg)
			for _, n := range input {
				assert.Equal(t, 0.5, n.Score(), "nodes must not be rescored on failure")
			}
		})
	}
}

func TestPostprocessNodes_TiesKeepInputOrder(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{"a": 0.4, "b": 0.9, "c": 0.4, "d": 0.4}}
	r := newTestReranker(t, 3, scorer)

	got, err := r.PostprocessNodes(context.Background(), "q", nodes("a", "b", "c", "d"))
	require.NoError(t, err)

	var contents []string
	for _, d := range got {
		contents = append(contents, d.Content)
	}
	assert.Equal(t, []string{"b", "a", "c"}, contents)
}

// TestPostprocessNodes_PermutationAndTruncation checks, over random inputs,
// that the output has min(N, K) nodes drawn from the input without
// repetition, with non-increasing scores.
func TestPostprocessNodes_PermutationAndTruncation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		k := rng.Intn(12)
		n := 1 + rng.Intn(8)

		scores := make(map[string]float64, k)
		contents := make([]string, k)
		for i := range contents {
			contents[i] = fmt.Sprintf("doc-%d-%d", trial, i)
			scores[contents[i]] = rng.Float64()
		}
		input := nodes(contents...)
		inputSet := make(map[*schema.Document]bool, k)
		for _, d := range input {
			inputSet[d] = true
		}

		r := newTestReranker(t, n, &fakeScorer{scores: scores})
		got, err := r.PostprocessNodes(context.Background(), "q", input)
		require.NoError(t, err)

		require.Len(t, got, min(n, k), "trial %d", trial)
		seen := make(map[*schema.Document]bool, len(got))
		for i, d := range got {
			assert.True(t, inputSet[d], "trial %d: node not from input", trial)
			assert.False(t, seen[d], "trial %d: node repeated", trial)
			seen[d] = true
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Score(), d.Score(), "trial %d: scores increase", trial)
			}
		}
	}
}

func TestPostprocessNodes_LogsCounts(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	r, err := NewReranker(types.RerankConfig{TopN: 1, Model: "bge-test"},
		&fakeScorer{scores: map[string]float64{"a": 1, "b": 2}}, zap.New(core))
	require.NoError(t, err)

	_, err = r.PostprocessNodes(context.Background(), "q", nodes("a", "b"))
	require.NoError(t, err)

	entries := observed.FilterMessage("reranked nodes").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bge-test", fields["model"])
	assert.Equal(t, int64(2), fields["candidates"])
	assert.Equal(t, int64(1), fields["kept"])
}

func TestNewReranker(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r, err := NewReranker(types.RerankConfig{}, &fakeScorer{}, nil)
		require.NoError(t, err)
		assert.Equal(t, defaultTopN, r.TopN())
		assert.Equal(t, defaultModel, r.model)
	})
	t.Run("negative top n", func(t *testing.T) {
		_, err := NewReranker(types.RerankConfig{TopN: -1}, &fakeScorer{}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
	t.Run("nil scorer", func(t *testing.T) {
		_, err := NewReranker(types.RerankConfig{}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNewScorer_UnknownBackend(t *testing.T) {
	_, err := NewScorer(context.Background(), types.RerankConfig{Backend: "grpc"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTopRanked(t *testing.T) {
	in := []Ranked{{0, 0.1}, {1, 0.9}, {2, 0.5}}
	got := topRanked(in, 2)
	assert.Equal(t, []Ranked{{1, 0.9}, {2, 0.5}}, got)
	assert.Equal(t, []Ranked{{0, 0.1}, {1, 0.9}, {2, 0.5}}, in, "input must not be reordered")
	assert.Len(t, topRanked(in, 10), 3)
}
