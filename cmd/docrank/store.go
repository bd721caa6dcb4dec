// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/docrank/internal/pdfreader"
	"github.com/pdiddy/docrank/internal/rerank"
	"github.com/pdiddy/docrank/internal/store"
	"github.com/pdiddy/docrank/pkg/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the candidate node store (add, query, export)",
	Long: `Store manages a local SQLite database of page documents with FTS5
indexing. Query retrieves full-text candidates and reranks them with the
cross-encoder.`,
}

// --- add subcommand ---

var storeAddCmd = &cobra.Command{
	Use:   "add <pdf>...",
	Short: "Read PDFs and store their page documents",
	Long: `Add reads each PDF with the structured reader and stores one node per
converted page. Nodes previously stored for the same file are replaced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStoreAdd,
}

func runStoreAdd(cmd *cobra.Command, args []string) error {
	reader, err := pdfreader.New(readerConfigFromFlags(cmd, cfg.Reader), logger)
	if err != nil {
		return err
	}
	s, err := store.Open(storeConfigFromFlags(cmd, cfg.Store))
	if err != nil {
		return err
	}
	defer s.Close()

	opts := loaderOptsFromFlags(cmd)
	var failed int
	for _, p := range args {
		docs, err := reader.Load(cmd.Context(), document.Source{URI: p}, opts...)
		if err != nil || len(docs) == 0 {
			fmt.Fprintf(os.Stdout, "failed  %s: no pages converted\n", filepath.Base(p))
			failed++
			continue
		}
		for _, d := range docs {
			d.ID = p + "#" + d.ID
		}
		removed, err := s.ReplaceSource(cmd.Context(), p, docs)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed  %s: %v\n", filepath.Base(p), err)
			failed++
			continue
		}
		if removed > 0 {
			fmt.Fprintf(os.Stdout, "updated %s (%d pages)\n", filepath.Base(p), len(docs))
		} else {
			fmt.Fprintf(os.Stdout, "added   %s (%d pages)\n", filepath.Base(p), len(docs))
		}
	}

	n, err := s.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d nodes stored\n", n)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// --- query subcommand ---

var storeQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve candidates with full-text search and rerank them",
	Long: `Query retrieves up to --limit candidates with FTS5 BM25 search, then
reranks them with the cross-encoder and prints the top N. Use --no-rerank to
print the full-text ranking as is.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStoreQuery,
}

func runStoreQuery(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	s, err := store.Open(storeConfigFromFlags(cmd, cfg.Store))
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	source, _ := cmd.Flags().GetString("source")
	candidates, err := s.Retrieve(cmd.Context(), store.QueryOptions{Query: query, Source: source, MaxResults: limit})
	if err != nil {
		return err
	}
	logger.Debug("retrieved candidates", zap.String("query", query), zap.Int("candidates", len(candidates)))

	results := candidates
	if noRerank, _ := cmd.Flags().GetBool("no-rerank"); !noRerank {
		r, err := rerank.New(cmd.Context(), rerankConfigFromFlags(cmd, cfg.Rerank), logger)
		if err != nil {
			return err
		}
		results, err = r.PostprocessNodes(cmd.Context(), query, candidates)
		if err != nil {
			return err
		}
	}

	format, _ := cmd.Flags().GetString("format")
	return writeNodes(os.Stdout, results, format)
}

// --- export subcommand ---

var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored nodes to YAML or JSON",
	Long:  `Export writes every stored node to export.yaml or export.json in the store directory.`,
	RunE:  runStoreExport,
}

func runStoreExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	s, err := store.Open(storeConfigFromFlags(cmd, cfg.Store))
	if err != nil {
		return err
	}
	defer s.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = s.ExportYAML(cmd.Context())
	case "json":
		path, err = s.ExportJSON(cmd.Context())
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func storeConfigFromFlags(cmd *cobra.Command, base types.StoreConfig) types.StoreConfig {
	if cmd.Flags().Changed("store-dir") {
		base.Dir, _ = cmd.Flags().GetString("store-dir")
	}
	return base
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	storeCmd.PersistentFlags().String("store-dir", "", "directory holding docrank.db (default from config)")

	addReaderFlags(storeAddCmd)

	addRerankFlags(storeQueryCmd)
	storeQueryCmd.Flags().Int("limit", 0, "maximum full-text candidates (0 = store default)")
	storeQueryCmd.Flags().String("source", "", "restrict candidates to one source file")
	storeQueryCmd.Flags().Bool("no-rerank", false, "skip the cross-encoder and print the full-text ranking")
	storeQueryCmd.Flags().String("format", "table", "output format: yaml, json or table")

	storeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	storeCmd.AddCommand(storeAddCmd)
	storeCmd.AddCommand(storeQueryCmd)
	storeCmd.AddCommand(storeExportCmd)

	rootCmd.AddCommand(storeCmd)
}
