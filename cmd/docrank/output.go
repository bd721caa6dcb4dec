// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/mattn/go-runewidth"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docrank/pkg/types"
)

// writeNodes prints docs to w as yaml, json or a summary table.
func writeNodes(w io.Writer, docs []*schema.Document, format string) error {
	nodes := make([]types.Node, len(docs))
	for i, d := range docs {
		nodes[i] = types.NodeFromDocument(d)
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	case "table":
		return writeTable(w, nodes)
	default:
		return fmt.Errorf("unsupported format %q: use yaml, json or table", format)
	}
}

func writeTable(w io.Writer, nodes []types.Node) error {
	if len(nodes) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-50s  %-24s  %s\n", "Rank", "Score", "Content", "Title", "Page")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, n := range nodes {
		content := strings.Join(strings.Fields(n.Content), " ")
		title, _ := n.Metadata[types.MetaTitle].(string)
		fmt.Fprintf(w, "%-4d  %-8.4f  %s  %s  %v\n",
			i+1, n.Score, cell(content, 50), cell(title, 24), n.Metadata[types.MetaPageNumber])
	}
	_, err := fmt.Fprintf(w, "\n%d results\n", len(nodes))
	return err
}

// cell truncates s to width display columns on a rune boundary and pads it
// to that width.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}

// readNodes reads a YAML or JSON list of nodes from path ("-" for stdin).
// JSON is read through the YAML decoder, which accepts it unchanged.
func readNodes(path string) ([]*schema.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading nodes: %w", err)
	}

	var nodes []types.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parsing nodes from %s: %w", path, err)
	}

	docs := make([]*schema.Document, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			n.ID = fmt.Sprintf("node-%d", i)
		}
		docs[i] = n.Document()
	}
	return docs, nil
}
