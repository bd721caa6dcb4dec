// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/docrank/internal/container"
	"github.com/pdiddy/docrank/pkg/types"
)

const defaultImage = "cross-encoder:latest"

// NewScorer loads the scorer backend selected by cfg.Backend. Load failures
// wrap ErrModelLoad; configuration problems wrap ErrInvalidConfig.
func NewScorer(ctx context.Context, cfg types.RerankConfig) (Scorer, error) {
	switch cfg.Backend {
	case types.BackendContainer, "":
		rt, err := container.SelectRuntime(cfg.Container.Runtime)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
		return NewContainerScorer(rt, cfg)
	case types.BackendHTTP:
		return NewHTTPScorer(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// rankRequest is the JSON document piped to the cross-encoder container.
type rankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	TopN  int      `json:"top_n"`
}

// ContainerScorer scores pairs by piping a rankRequest through a
// cross-encoder image. The image entrypoint takes --model and --device and
// writes a JSON array of Ranked to stdout.
type ContainerScorer struct {
	runtime container.Runtime
	image   string
	opts    container.RunOptions
}

// NewContainerScorer verifies that the cross-encoder image exists in rt
// before returning.
func NewContainerScorer(rt container.Runtime, cfg types.RerankConfig) (*ContainerScorer, error) {
	image := cfg.Container.Image
	if image == "" {
		image = defaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("%w: cross-encoder image not available in %s: %w", ErrModelLoad, rt.Name(), err)
	}
	return &ContainerScorer{
		runtime: rt,
		image:   image,
		opts: container.RunOptions{
			RunArgs: cfg.Container.RunArgs,
			Args:    []string{"--model", cfg.Model, "--device", cfg.Device},
		},
	}, nil
}

// Rank runs one container invocation over all texts.
func (s *ContainerScorer) Rank(ctx context.Context, query string, texts []string, topN int) ([]Ranked, error) {
	payload, err := json.Marshal(rankRequest{Query: query, Texts: texts, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("encoding rank request: %w", err)
	}

	var out bytes.Buffer
	if err := s.runtime.Run(ctx, s.image, s.opts, bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}

	var ranked []Ranked
	if err := json.Unmarshal(out.Bytes(), &ranked); err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", s.image, err)
	}
	return topRanked(ranked, topN), nil
}
