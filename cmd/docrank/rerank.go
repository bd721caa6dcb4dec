// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docrank/internal/rerank"
	"github.com/pdiddy/docrank/pkg/types"
)

var rerankCmd = &cobra.Command{
	Use:   "rerank --query <text> <nodes-file>",
	Short: "Rerank candidate nodes against a query with a cross-encoder",
	Long: `Rerank reads a YAML or JSON list of nodes ({id, content, metadata}) from a
file, or from stdin when the file is "-", scores every node against the query
with a cross-encoder and prints the top N, best first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRerank,
}

func runRerank(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("--query is required")
	}

	docs, err := readNodes(args[0])
	if err != nil {
		return err
	}

	r, err := rerank.New(cmd.Context(), rerankConfigFromFlags(cmd, cfg.Rerank), logger)
	if err != nil {
		return err
	}

	ranked, err := r.PostprocessNodes(cmd.Context(), query, docs)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	return writeNodes(os.Stdout, ranked, format)
}

// rerankConfigFromFlags overrides base with the rerank flags the user set.
func rerankConfigFromFlags(cmd *cobra.Command, base types.RerankConfig) types.RerankConfig {
	f := cmd.Flags()
	if f.Changed("top-n") {
		base.TopN, _ = f.GetInt("top-n")
	}
	if f.Changed("model") {
		base.Model, _ = f.GetString("model")
	}
	if f.Changed("device") {
		base.Device, _ = f.GetString("device")
	}
	if f.Changed("rerank-backend") {
		b, _ := f.GetString("rerank-backend")
		base.Backend = types.Backend(b)
	}
	if f.Changed("rerank-endpoint") {
		base.HTTP.Endpoint, _ = f.GetString("rerank-endpoint")
	}
	return base
}

// addRerankFlags registers the reranker flags shared by rerank and store query.
func addRerankFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("top-n", 4, "number of nodes kept after reranking")
	f.String("model", "", "cross-encoder model id or path (default from config)")
	f.String("device", "", "inference device, e.g. CPU, GPU, AUTO (default from config)")
	f.String("rerank-backend", "", "scorer backend: container or http (default from config)")
	f.String("rerank-endpoint", "", "text-embeddings-inference URL for the http backend")
}

func init() {
	addRerankFlags(rerankCmd)
	rerankCmd.Flags().String("query", "", "query to score nodes against")
	rerankCmd.Flags().String("format", "yaml", "output format: yaml, json or table")

	rootCmd.AddCommand(rerankCmd)
}
