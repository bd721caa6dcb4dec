// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docrank/pkg/types"
)

// ExportEntry is one stored node in an export file.
type ExportEntry struct {
	types.Node `yaml:",inline"`
	AddedAt    string `json:"added_at" yaml:"added_at"`
}

// ExportYAML writes every stored node to dir/export.yaml and returns the
// file path.
func (s *Store) ExportYAML(ctx context.Context) (string, error) {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, "export.yaml")
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes every stored node to dir/export.json and returns the
// file path.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, "export.json")
	return path, os.WriteFile(path, data, 0o644)
}

// exportEntries lists nodes ordered by source and page.
func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, added_at FROM nodes ORDER BY source, page, id`)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	entries := []ExportEntry{}
	for rows.Next() {
		var (
			e        ExportEntry
			metaJSON string
		)
		if err := rows.Scan(&e.ID, &e.Content, &metaJSON, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
