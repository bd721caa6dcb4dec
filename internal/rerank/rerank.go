// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank implements a node postprocessor that reorders retrieved
// candidates by cross-encoder relevance and keeps the top N. Scoring is
// delegated to a Scorer backend: a model container run through docker or
// podman, or a text-embeddings-inference compatible server.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/pdiddy/docrank/internal/logging"
	"github.com/pdiddy/docrank/pkg/types"
)

const (
	defaultModel  = "BAAI/bge-reranker-large"
	defaultDevice = "AUTO"
	defaultTopN   = 4
)

var (
	// ErrInvalidConfig is returned when the reranker configuration is unusable.
	ErrInvalidConfig = errors.New("invalid rerank config")

	// ErrModelLoad is returned when the cross-encoder cannot be loaded.
	ErrModelLoad = errors.New("loading cross-encoder model")

	// ErrInvalidInput is returned for an empty query or a nil candidate.
	ErrInvalidInput = errors.New("invalid rerank input")

	// ErrScoring is returned when the scoring pass fails or its output does
	// not describe the candidates it was given.
	ErrScoring = errors.New("scoring candidates")
)

// Postprocessor reorders retrieved nodes for a query. Implementations return
// a subset of the input nodes, never new ones.
type Postprocessor interface {
	PostprocessNodes(ctx context.Context, query string, nodes []*schema.Document) ([]*schema.Document, error)
}

// Ranked is one cross-encoder result: the position of a text in the scored
// batch and its relevance score.
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Scorer is a loaded cross-encoder. Rank scores every (query, text) pair in a
// single pass and returns at most topN results.
type Scorer interface {
	Rank(ctx context.Context, query string, texts []string, topN int) ([]Ranked, error)
}

// Reranker is the cross-encoder Postprocessor. The model handle is loaded
// once at construction and reused for every call.
type Reranker struct {
	scorer Scorer
	model  string
	topN   int
	log    *zap.Logger
}

var _ Postprocessor = (*Reranker)(nil)

// New validates cfg, loads the configured scorer backend and returns a
// ready Reranker.
func New(ctx context.Context, cfg types.RerankConfig, log *zap.Logger) (*Reranker, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	scorer, err := NewScorer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if hs, ok := scorer.(*HTTPScorer); ok && cfg.Model == "" {
		cfg.Model = hs.model
	}
	return NewReranker(cfg, scorer, log)
}

// NewReranker wraps an already loaded scorer.
func NewReranker(cfg types.RerankConfig, scorer Scorer, log *zap.Logger) (*Reranker, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: scorer is nil", ErrInvalidConfig)
	}
	return &Reranker{
		scorer: scorer,
		model:  cfg.Model,
		topN:   cfg.TopN,
		log:    logging.OrNop(log).With(zap.String("model", cfg.Model)),
	}, nil
}

// TopN returns the number of nodes kept per call.
func (r *Reranker) TopN() int { return r.topN }

// PostprocessNodes scores nodes against query and returns at most TopN of
// them sorted by descending relevance. Each returned node has its score set
// to the cross-encoder score; nodes not returned are left untouched.
func (r *Reranker) PostprocessNodes(ctx context.Context, query string, nodes []*schema.Document) ([]*schema.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if len(nodes) == 0 {
		return []*schema.Document{}, nil
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: node %d is nil", ErrInvalidInput, i)
		}
		texts[i] = n.Content
	}

	ranked, err := r.scorer.Rank(ctx, query, texts, r.topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoring, err)
	}

	want := min(r.topN, len(nodes))
	if err := checkRanked(ranked, len(nodes), want); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoring, err)
	}

	ranked = topRanked(ranked, want)
	out := make([]*schema.Document, 0, len(ranked))
	for _, rk := range ranked {
		out = append(out, nodes[rk.Index].WithScore(rk.Score))
	}

	r.log.Debug("reranked nodes",
		zap.Int("candidates", len(nodes)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}

// checkRanked verifies that ranked references distinct candidates in
// [0, n) and covers at least want of them.
func checkRanked(ranked []Ranked, n, want int) error {
	seen := make(map[int]bool, len(ranked))
	for _, rk := range ranked {
		if rk.Index < 0 || rk.Index >= n {
			return fmt.Errorf("result index %d out of range for %d candidates", rk.Index, n)
		}
		if seen[rk.Index] {
			return fmt.Errorf("candidate %d scored twice", rk.Index)
		}
		seen[rk.Index] = true
	}
	if len(ranked) < want {
		return fmt.Errorf("scorer returned %d results, want %d", len(ranked), want)
	}
	return nil
}

// topRanked sorts ranked by descending score, keeping input order on ties,
// and truncates it to n entries.
func topRanked(ranked []Ranked, n int) []Ranked {
	sorted := make([]Ranked, len(ranked))
	copy(sorted, ranked)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func withDefaults(cfg types.RerankConfig) (types.RerankConfig, error) {
	if cfg.TopN < 0 {
		return cfg, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidConfig, cfg.TopN)
	}
	if cfg.TopN == 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.Backend == "" {
		cfg.Backend = types.BackendContainer
	}
	// An HTTP server decides its own model; an unset model accepts it.
	if cfg.Model == "" && cfg.Backend == types.BackendContainer {
		cfg.Model = defaultModel
	}
	if cfg.Device == "" {
		cfg.Device = defaultDevice
	}
	return cfg, nil
}
