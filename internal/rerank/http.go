// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/docrank/internal/httputil"
	"github.com/pdiddy/docrank/pkg/types"
)

// HTTPScorer scores pairs through a text-embeddings-inference compatible
// server that hosts a cross-encoder (POST /rerank).
type HTTPScorer struct {
	client  *http.Client
	cfg     types.HTTPConfig
	baseURL string
	model   string
}

// serverInfo is the subset of GET /info this scorer checks.
type serverInfo struct {
	ModelID   string                     `json:"model_id"`
	ModelType map[string]json.RawMessage `json:"model_type"`
}

type httpRankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

// NewHTTPScorer connects to cfg.HTTP.Endpoint and checks that the server
// hosts a reranker. When cfg.Model is set, the served model must match it.
func NewHTTPScorer(ctx context.Context, cfg types.RerankConfig) (*HTTPScorer, error) {
	if cfg.HTTP.Endpoint == "" {
		return nil, fmt.Errorf("%w: http backend requires an endpoint", ErrInvalidConfig)
	}
	s := &HTTPScorer{
		client:  httputil.NewClient(cfg.HTTP),
		cfg:     cfg.HTTP,
		baseURL: strings.TrimRight(cfg.HTTP.Endpoint, "/"),
	}

	info, err := s.info(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if _, ok := info.ModelType["reranker"]; !ok {
		return nil, fmt.Errorf("%w: %s serves %q, which is not a reranker", ErrModelLoad, s.baseURL, info.ModelID)
	}
	if cfg.Model != "" && info.ModelID != cfg.Model {
		return nil, fmt.Errorf("%w: %s serves %q, want %q", ErrModelLoad, s.baseURL, info.ModelID, cfg.Model)
	}
	s.model = info.ModelID
	return s, nil
}

func (s *HTTPScorer) info(ctx context.Context) (serverInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/info", nil)
	if err != nil {
		return serverInfo{}, fmt.Errorf("building info request: %w", err)
	}
	httputil.SetHeaders(req, s.cfg)

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.cfg.MaxRetries)
	if err != nil {
		return serverInfo{}, fmt.Errorf("querying %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "model info"); err != nil {
		return serverInfo{}, err
	}

	var info serverInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return serverInfo{}, fmt.Errorf("decoding model info: %w", err)
	}
	return info, nil
}

// Rank posts all texts in one /rerank request.
func (s *HTTPScorer) Rank(ctx context.Context, query string, texts []string, topN int) ([]Ranked, error) {
	payload, err := json.Marshal(httpRankRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("encoding rank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building rank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	httputil.SetHeaders(req, s.cfg)

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "rerank"); err != nil {
		return nil, err
	}

	var ranked []Ranked
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}
	return topRanked(ranked, topN), nil
}
