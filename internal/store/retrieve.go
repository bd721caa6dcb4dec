// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ErrEmptyQuery is returned by Retrieve when the query has no search terms.
var ErrEmptyQuery = errors.New("empty query")

// QueryOptions holds parameters for candidate retrieval.
type QueryOptions struct {
	// Query is free text. Each whitespace-separated term is matched as a
	// quoted FTS5 string and terms are OR-ed, so punctuation is never
	// interpreted as query syntax.
	Query string

	// Source restricts results to nodes read from one file.
	Source string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Retrieve returns the nodes matching opts.Query, best BM25 match first.
// Each node's score is the negated FTS5 rank, so higher is better.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]*schema.Document, error) {
	match := matchExpr(opts.Query)
	if match == "" {
		return nil, ErrEmptyQuery
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var qb strings.Builder
	args := []any{match}
	qb.WriteString(
		`SELECT n.id, n.content, n.metadata, nodes_fts.rank
		FROM nodes_fts
		JOIN nodes n ON n.rowid = nodes_fts.rowid
		WHERE nodes_fts MATCH ?`)
	if opts.Source != "" {
		qb.WriteString(` AND n.source = ?`)
		args = append(args, opts.Source)
	}
	qb.WriteString(` ORDER BY nodes_fts.rank LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var (
			doc      schema.Document
			metaJSON string
			rank     float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metaJSON, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &doc.MetaData); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc.WithScore(-rank))
	}
	return docs, rows.Err()
}

// matchExpr turns free text into an FTS5 expression of quoted terms joined
// by OR. It returns "" when text has no terms.
func matchExpr(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}
