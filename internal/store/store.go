// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists page documents in SQLite and retrieves candidate
// nodes for reranking with FTS5 full-text search.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docrank/pkg/types"
)

const (
	dbFile            = "docrank.db"
	defaultMaxResults = 20
)

// Store manages the node database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the database at cfg.Dir/docrank.db and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			source TEXT,
			page INTEGER,
			metadata TEXT,
			added_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='nodes_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE nodes_fts USING fts5(content, content=nodes, content_rowid=rowid)`,
		`CREATE TRIGGER nodes_ai AFTER INSERT ON nodes BEGIN
			INSERT INTO nodes_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER nodes_ad AFTER DELETE ON nodes BEGIN
			INSERT INTO nodes_fts(nodes_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER nodes_au AFTER UPDATE ON nodes BEGIN
			INSERT INTO nodes_fts(nodes_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			INSERT INTO nodes_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Add inserts docs, replacing any stored node with the same ID. Documents
// without an ID are rejected.
func (s *Store) Add(ctx context.Context, docs []*schema.Document) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertNodes(ctx, tx, docs, "")
	})
}

// ReplaceSource removes every node stored for source and adds docs under
// source in one transaction, whatever source their metadata names. It
// returns the number of nodes removed.
func (s *Store) ReplaceSource(ctx context.Context, source string, docs []*schema.Document) (int, error) {
	var removed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE source = ?`, source)
		if err != nil {
			return fmt.Errorf("deleting nodes of %s: %w", source, err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)
		return insertNodes(ctx, tx, docs, source)
	})
	return removed, err
}

// Count returns the number of stored nodes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return n, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// insertNodes upserts docs. An empty source takes each node's source from
// its metadata.
func insertNodes(ctx context.Context, tx *sql.Tx, docs []*schema.Document, source string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (id, content, source, page, metadata, added_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content=excluded.content, source=excluded.source, page=excluded.page,
			metadata=excluded.metadata, added_at=excluded.added_at`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, doc := range docs {
		if doc == nil || doc.ID == "" {
			return fmt.Errorf("node %d has no id", i)
		}
		node := types.NodeFromDocument(doc)
		metaJSON, err := json.Marshal(node.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", doc.ID, err)
		}
		src := source
		if src == "" {
			src, _ = node.Metadata[types.MetaSource].(string)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, doc.Content, src, pageOf(node.Metadata), string(metaJSON), now,
		); err != nil {
			return fmt.Errorf("inserting node %s: %w", doc.ID, err)
		}
	}
	return nil
}

// pageOf reads the page number from metadata that may have passed through
// JSON or YAML decoding.
func pageOf(meta map[string]any) int {
	switch v := meta[types.MetaPageNumber].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
