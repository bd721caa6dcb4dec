// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads model-server credentials from a directory of
// plain-text files. Each file is one secret: the filename is the key and the
// trimmed contents are the value.
//
// Recognized keys: rerank-api-key, marker-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/docrank/internal/logging"
	"github.com/pdiddy/docrank/pkg/types"
)

const (
	// KeyRerank holds the bearer token for the rerank HTTP backend.
	KeyRerank = "rerank-api-key"

	// KeyMarker holds the bearer token for the marker HTTP backend.
	KeyMarker = "marker-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	log = logging.OrNop(log)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills the API keys of cfg's HTTP backends from secrets. Keys set in
// the configuration take precedence.
func Apply(cfg *types.Config, secrets map[string]string) {
	if cfg.Rerank.HTTP.APIKey == "" {
		cfg.Rerank.HTTP.APIKey = secrets[KeyRerank]
	}
	if cfg.Reader.HTTP.APIKey == "" {
		cfg.Reader.HTTP.APIKey = secrets[KeyMarker]
	}
}
