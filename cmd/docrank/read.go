// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"

	"github.com/pdiddy/docrank/internal/convert"
	"github.com/pdiddy/docrank/internal/pdfreader"
	"github.com/pdiddy/docrank/pkg/types"
)

var readCmd = &cobra.Command{
	Use:   "read <pdf>...",
	Short: "Convert PDFs into per-page markdown documents",
	Long: `Read splits each PDF into pages, converts every page to markdown with the
marker layout model and prints one document per converted page.

Pages that fail to convert are logged and skipped. OCR languages are inferred
from the file name (EN, DE, FR, LU) unless --langs is given.

With --out-dir, each page is written to <out-dir>/<name>_<i>.md with YAML
frontmatter instead of being printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	readerCfg := readerConfigFromFlags(cmd, cfg.Reader)
	reader, err := pdfreader.New(readerCfg, logger)
	if err != nil {
		return err
	}
	opts := loaderOptsFromFlags(cmd)

	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir != "" {
		result := convert.ConvertPaths(cmd.Context(), reader, args, outDir, os.Stdout, opts...)
		if result.HasFailures() {
			return fmt.Errorf("%d page(s) or file(s) failed", result.Failed)
		}
		return nil
	}

	var docs []*schema.Document
	for _, p := range args {
		d, err := reader.Load(cmd.Context(), document.Source{URI: p}, opts...)
		if err != nil {
			return err
		}
		docs = append(docs, d...)
	}
	format, _ := cmd.Flags().GetString("format")
	return writeNodes(os.Stdout, docs, format)
}

// readerConfigFromFlags overrides the backend settings of base with the
// flags the user set.
func readerConfigFromFlags(cmd *cobra.Command, base types.ReaderConfig) types.ReaderConfig {
	if cmd.Flags().Changed("backend") {
		b, _ := cmd.Flags().GetString("backend")
		base.Backend = types.Backend(b)
	}
	if cmd.Flags().Changed("endpoint") {
		base.HTTP.Endpoint, _ = cmd.Flags().GetString("endpoint")
	}
	if cmd.Flags().Changed("image") {
		base.Container.Image, _ = cmd.Flags().GetString("image")
	}
	return base
}

// loaderOptsFromFlags turns the per-call conversion flags the user set into
// loader options.
func loaderOptsFromFlags(cmd *cobra.Command) []document.LoaderOption {
	var opts []document.LoaderOption
	f := cmd.Flags()
	if f.Changed("max-pages") {
		n, _ := f.GetInt("max-pages")
		opts = append(opts, pdfreader.WithMaxPages(n))
	}
	if f.Changed("langs") {
		langs, _ := f.GetStringSlice("langs")
		opts = append(opts, pdfreader.WithLanguages(langs...))
	}
	if f.Changed("batch-multiplier") {
		n, _ := f.GetInt("batch-multiplier")
		opts = append(opts, pdfreader.WithBatchMultiplier(n))
	}
	if f.Changed("start-page") {
		n, _ := f.GetInt("start-page")
		opts = append(opts, pdfreader.WithStartPage(n))
	}
	if f.Changed("meta") {
		kv, _ := f.GetStringToString("meta")
		meta := make(map[string]any, len(kv))
		for k, v := range kv {
			meta[k] = v
		}
		opts = append(opts, pdfreader.WithExtraMeta(meta))
	}
	return opts
}

// addReaderFlags registers the conversion flags shared by read and store add.
func addReaderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "", "conversion backend: container or http (default from config)")
	f.String("endpoint", "", "marker server URL for the http backend")
	f.String("image", "", "marker image for the container backend")
	f.Int("max-pages", 0, "maximum pages converted per page file (0 = no limit)")
	f.StringSlice("langs", nil, "OCR languages, e.g. English,German (default: inferred from file name)")
	f.Int("batch-multiplier", 2, "batch size multiplier for the conversion model")
	f.Int("start-page", 0, "first page handed to the conversion model")
	f.StringToString("meta", nil, "extra metadata added to every document, e.g. collection=hr")
}

func init() {
	addReaderFlags(readCmd)
	readCmd.Flags().String("format", "yaml", "output format: yaml, json or table")
	readCmd.Flags().String("out-dir", "", "write one markdown file per page into this directory")

	rootCmd.AddCommand(readCmd)
}
