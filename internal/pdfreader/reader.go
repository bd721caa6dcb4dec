// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfreader implements a document loader that converts a PDF into
// structured markdown, one document per page. The source is split into
// one-page files beside it, each page is converted by a layout-aware model
// (marker) and the page files are removed before Load returns.
//
// Load never fails: pages that cannot be converted are logged and skipped,
// and a source that cannot be read yields an empty result.
package pdfreader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/pdiddy/docrank/internal/logging"
	"github.com/pdiddy/docrank/pkg/types"
)

// Reader is a document.Loader for PDF files. Source.URI is a local path.
type Reader struct {
	splitter Splitter
	backend  Backend
	defaults options
	log      *zap.Logger
}

var _ document.Loader = (*Reader)(nil)

// New creates a Reader with the pdfcpu splitter and the backend selected by
// cfg.
func New(cfg types.ReaderConfig, log *zap.Logger) (*Reader, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewReader(cfg, NewPDFCPUSplitter(), backend, log)
}

// NewReader creates a Reader from explicit parts. cfg supplies the per-call
// defaults.
func NewReader(cfg types.ReaderConfig, splitter Splitter, backend Backend, log *zap.Logger) (*Reader, error) {
	if splitter == nil {
		return nil, errors.New("pdfreader: splitter is nil")
	}
	if backend == nil {
		return nil, errors.New("pdfreader: backend is nil")
	}
	batch := cfg.BatchMultiplier
	if batch == 0 {
		batch = defaultBatchMultiplier
	}
	return &Reader{
		splitter: splitter,
		backend:  backend,
		defaults: options{
			MaxPages:        cfg.MaxPages,
			Languages:       cfg.Languages,
			BatchMultiplier: batch,
			StartPage:       cfg.StartPage,
		},
		log: logging.OrNop(log),
	}, nil
}

// pageResult is the outcome of converting one page file.
type pageResult struct {
	page int // 0-based
	path string
	doc  *schema.Document
	err  error
}

// Load converts the PDF at src.URI. It returns one document per converted
// page, in page order, and a nil error in every case.
func (r *Reader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	base := r.defaults
	o := document.GetLoaderImplSpecificOptions(&base, opts...)
	log := r.log.With(zap.String("source", src.URI))

	docs, err := r.load(ctx, src.URI, o, log)
	if err != nil {
		log.Error("reading pdf", zap.Error(err))
		return []*schema.Document{}, nil
	}
	return docs, nil
}

func (r *Reader) load(ctx context.Context, path string, o *options, log *zap.Logger) ([]*schema.Document, error) {
	n, err := r.splitter.PageCount(path)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}

	var written []string
	defer func() { removePages(written, log) }()

	results := make([]pageResult, n)
	for i := range results {
		p := pagePath(path, i)
		results[i] = pageResult{page: i, path: p}
		// Existing files beside the source are never overwritten or removed.
		if _, err := os.Lstat(p); err == nil {
			results[i].err = fmt.Errorf("page file %s already exists", p)
			continue
		}
		written = append(written, p)
		if err := r.splitter.WritePage(path, i, p); err != nil {
			return nil, err
		}
	}

	conv, err := r.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading conversion models: %w", err)
	}

	copts := o.convertOptions(filepath.Base(path))
	for i := range results {
		res := &results[i]
		if res.err != nil {
			continue
		}
		md, err := conv.ConvertPage(ctx, res.path, copts)
		if err != nil {
			res.err = err
		} else {
			res.doc = newPageDocument(md, res.path, i, path, o.ExtraMeta)
		}
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			log.Warn("converting page", zap.Int("page", res.page+1), zap.Error(res.err))
			continue
		}
		docs = append(docs, res.doc)
	}
	log.Info("read pdf",
		zap.Int("pages", n),
		zap.Int("documents", len(docs)),
		zap.Strings("languages", copts.Languages),
	)
	return docs, nil
}

// newPageDocument builds the document for the 0-based page converted from
// pagePath. extra is copied so documents never share a metadata map.
func newPageDocument(content, pagePath string, page int, source string, extra map[string]any) *schema.Document {
	meta := make(map[string]any, len(extra)+3)
	maps.Copy(meta, extra)
	title := filepath.Base(pagePath)
	meta[types.MetaTitle] = title
	meta[types.MetaPageNumber] = page + 1
	if _, ok := meta[types.MetaSource]; !ok {
		meta[types.MetaSource] = source
	}
	return &schema.Document{ID: title, Content: content, MetaData: meta}
}

// removePages deletes every page file. Each removal is independent; files
// that were never written are ignored.
func removePages(pages []string, log *zap.Logger) {
	for _, p := range pages {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("removing page file", zap.String("path", p), zap.Error(err))
		}
	}
}
