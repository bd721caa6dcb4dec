// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfreader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/docrank/internal/httputil"
	"github.com/pdiddy/docrank/pkg/types"
)

// HTTPBackend converts pages through a marker server (POST /marker/upload).
type HTTPBackend struct {
	client  *http.Client
	cfg     types.HTTPConfig
	baseURL string
}

// markerResponse is the JSON body returned by /marker/upload.
type markerResponse struct {
	Output  string `json:"output"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewHTTPBackend creates a backend for the marker server at cfg.Endpoint.
func NewHTTPBackend(cfg types.HTTPConfig) (*HTTPBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http reader backend requires an endpoint")
	}
	return &HTTPBackend{
		client:  httputil.NewClient(cfg),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

// Load checks that the server is up. The server holds the models in memory,
// so a reachable root is a loaded model set.
func (b *HTTPBackend) Load(ctx context.Context) (PageConverter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("building health request: %w", err)
	}
	httputil.SetHeaders(req, b.cfg)

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("reaching marker server %s: %w", b.baseURL, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "marker health"); err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return b, nil
}

// ConvertPage uploads the page file and returns the markdown output.
func (b *HTTPBackend) ConvertPage(ctx context.Context, pagePath string, opts ConvertOptions) (string, error) {
	body, contentType, err := uploadBody(pagePath, opts)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/marker/upload", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	httputil.SetHeaders(req, b.cfg)

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", pagePath, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "marker upload"); err != nil {
		return "", err
	}

	var mr markerResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("decoding marker response: %w", err)
	}
	if !mr.Success {
		return "", fmt.Errorf("marker failed on %s: %s", pagePath, mr.Error)
	}
	return mr.Output, nil
}

// uploadBody builds the multipart form for one page upload.
func uploadBody(pagePath string, opts ConvertOptions) ([]byte, string, error) {
	data, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, "", fmt.Errorf("reading page %s: %w", pagePath, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(pagePath))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("writing form file: %w", err)
	}

	fields := map[string]string{
		"output_format":    "markdown",
		"batch_multiplier": strconv.Itoa(opts.BatchMultiplier),
	}
	if len(opts.Languages) > 0 {
		fields["languages"] = strings.Join(opts.Languages, ",")
	}
	if pr := pageRange(opts); pr != "" {
		fields["page_range"] = pr
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// pageRange translates a start page and page cap into marker's 0-based
// page_range syntax. It is empty when neither is set.
func pageRange(opts ConvertOptions) string {
	start := 0
	if opts.StartPage != nil {
		start = *opts.StartPage
	}
	switch {
	case opts.MaxPages > 0:
		return fmt.Sprintf("%d-%d", start, start+opts.MaxPages-1)
	case opts.StartPage != nil:
		return strconv.Itoa(start)
	default:
		return ""
	}
}
