// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docrank CLI. It reads PDFs into
// per-page markdown documents, stores them for full-text retrieval and
// reranks candidates with a cross-encoder.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/docrank/internal/logging"
	"github.com/pdiddy/docrank/internal/secrets"
	"github.com/pdiddy/docrank/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the decoded configuration, available after PersistentPreRunE.
	cfg types.Config

	// logger is built from cfg.Log in PersistentPreRunE.
	logger = zap.NewNop()
)

// rootCmd is the base command for the docrank CLI.
var rootCmd = &cobra.Command{
	Use:   "docrank",
	Short: "Structured PDF reading and cross-encoder reranking for retrieval pipelines",
	Long: `docrank converts PDFs into per-page markdown documents with a layout-aware
model, stores them for full-text retrieval, and reranks retrieved candidates
with a cross-encoder.

Models run in a docker/podman container or behind an HTTP model server,
selected per component in docrank.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := decodeConfig(viper.GetViper())
		if err != nil {
			return err
		}

		l, err := logging.New(c.Log)
		if err != nil {
			return err
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, l)
		if err != nil {
			return err
		}
		secrets.Apply(&c, s)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			l.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		if f := viper.ConfigFileUsed(); f != "" {
			l.Debug("using config file", zap.String("path", f))
		}

		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./docrank.yaml or ~/.config/docrank/docrank.yaml)")
	pf.String("secrets-dir", ".secrets/", "directory holding rerank-api-key and marker-api-key")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docrank")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docrank"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("DOCRANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// setDefaults registers every configuration key so that DOCRANK_* variables
// reach Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"rerank.model":              "",
		"rerank.device":             "AUTO",
		"rerank.top_n":              4,
		"rerank.backend":            string(types.BackendContainer),
		"rerank.container.image":    "cross-encoder:latest",
		"rerank.container.runtime":  "",
		"rerank.container.run_args": []string{},
		"rerank.http.endpoint":      "",
		"rerank.http.timeout":       "120s",
		"rerank.http.api_key":       "",
		"rerank.http.max_retries":   5,
		"rerank.http.user_agent":    "",
		"reader.max_pages":          0,
		"reader.languages":          []string{},
		"reader.batch_multiplier":   2,
		"reader.backend":            string(types.BackendContainer),
		"reader.container.image":    "marker:latest",
		"reader.container.runtime":  "",
		"reader.container.run_args": []string{},
		"reader.http.endpoint":      "",
		"reader.http.timeout":       "300s",
		"reader.http.api_key":       "",
		"reader.http.max_retries":   5,
		"reader.http.user_agent":    "",
		"store.dir":                 ".docrank",
		"store.max_results":         20,
		"log.level":                 "info",
		"log.format":                "console",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// decodeConfig unmarshals v into a Config using the yaml field names.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config
	err := v.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
