// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration and node types shared by the
// docrank reader, reranker and store.
package types

import (
	"maps"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Metadata keys set on documents produced by the PDF reader.
const (
	// MetaTitle holds the base name of the temporary per-page file.
	MetaTitle = "title"

	// MetaPageNumber holds the 1-based page number within the source PDF.
	MetaPageNumber = "page_number"

	// MetaSource holds the path of the source file a stored node came from.
	MetaSource = "source"
)

// Node is the serialized form of a candidate node or document, used by the
// CLI for YAML/JSON input and output.
type Node struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Content  string         `json:"content" yaml:"content"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty" yaml:"score,omitempty"`
}

// NodeFromDocument converts doc to its serialized form. Metadata keys with a
// leading underscore are framework bookkeeping (the score among them) and are
// left out.
func NodeFromDocument(doc *schema.Document) Node {
	n := Node{ID: doc.ID, Content: doc.Content, Score: doc.Score()}
	for k, v := range doc.MetaData {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if n.Metadata == nil {
			n.Metadata = make(map[string]any, len(doc.MetaData))
		}
		n.Metadata[k] = v
	}
	return n
}

// Document converts n back into a framework document, carrying its score.
func (n Node) Document() *schema.Document {
	doc := &schema.Document{ID: n.ID, Content: n.Content, MetaData: maps.Clone(n.Metadata)}
	if n.Score != 0 {
		doc.WithScore(n.Score)
	}
	return doc
}
