// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert writes page documents produced by a document loader out
// as markdown files, one per page, each with YAML frontmatter carrying the
// page metadata.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docrank/pkg/types"
)

// Status is the outcome of writing one page.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// BatchResult holds the page counts of a conversion run.
type BatchResult struct {
	Written int
	Skipped int
	Failed  int
}

// Total returns the total number of pages processed.
func (r BatchResult) Total() int {
	return r.Written + r.Skipped + r.Failed
}

// HasFailures reports whether any page or source failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(s Status) {
	switch s {
	case StatusWritten:
		r.Written++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// WritePage writes doc to outDir/<title stem>.md. If the file already
// exists it is left alone and StatusSkipped is returned.
func WritePage(doc *schema.Document, outDir string, w io.Writer) Status {
	name := pageFileName(doc)
	mdPath := filepath.Join(outDir, name)

	if _, err := os.Stat(mdPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
		return StatusSkipped
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed
	}

	content, err := addFrontmatter(doc)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed
	}

	if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed
	}

	fmt.Fprintf(w, "written: %s\n", name)
	return StatusWritten
}

// WriteBatch writes every document to outDir.
func WriteBatch(docs []*schema.Document, outDir string, w io.Writer) BatchResult {
	var result BatchResult
	for _, d := range docs {
		result.add(WritePage(d, outDir, w))
	}
	return result
}

// ConvertPaths loads each PDF with loader and writes its pages to outDir.
// A source that yields no pages counts as one failure. A summary line is
// printed to w.
func ConvertPaths(ctx context.Context, loader document.Loader, pdfPaths []string, outDir string, w io.Writer, opts ...document.LoaderOption) BatchResult {
	var result BatchResult
	for _, p := range pdfPaths {
		docs, err := loader.Load(ctx, document.Source{URI: p}, opts...)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", filepath.Base(p), err)
			result.Failed++
			continue
		}
		if len(docs) == 0 {
			fmt.Fprintf(w, "failed:  %s (no pages converted)\n", filepath.Base(p))
			result.Failed++
			continue
		}
		batch := WriteBatch(docs, outDir, w)
		result.Written += batch.Written
		result.Skipped += batch.Skipped
		result.Failed += batch.Failed
	}
	fmt.Fprintf(w, "\nBatch summary: %d written, %d skipped, %d failed (total: %d)\n",
		result.Written, result.Skipped, result.Failed, result.Total())
	return result
}

// pageFileName derives the markdown file name from the page title, falling
// back to the document ID.
func pageFileName(doc *schema.Document) string {
	title, _ := doc.MetaData[types.MetaTitle].(string)
	if title == "" {
		title = doc.ID
	}
	title = filepath.Base(title)
	return strings.TrimSuffix(title, filepath.Ext(title)) + ".md"
}

// addFrontmatter prepends the document metadata as YAML frontmatter to its
// markdown content.
func addFrontmatter(doc *schema.Document) (string, error) {
	node := types.NodeFromDocument(doc)
	meta := make(map[string]any, len(node.Metadata)+1)
	for k, v := range node.Metadata {
		meta[k] = v
	}
	meta["converted_at"] = time.Now().UTC().Format(time.RFC3339)

	fm, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(doc.Content)
	return b.String(), nil
}
