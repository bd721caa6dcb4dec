// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfreader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/docrank/internal/container"
	"github.com/pdiddy/docrank/pkg/types"
)

const defaultMarkerImage = "marker:latest"

// ConvertOptions are the settings passed to the conversion model for one
// page file.
type ConvertOptions struct {
	MaxPages        int
	Languages       []string
	BatchMultiplier int
	StartPage       *int
}

// Backend loads the layout-aware conversion models.
type Backend interface {
	// Load prepares the models. It is called once per Load of the reader,
	// after the source has been split.
	Load(ctx context.Context) (PageConverter, error)
}

// PageConverter turns one page file into markdown with loaded models.
type PageConverter interface {
	ConvertPage(ctx context.Context, pagePath string, opts ConvertOptions) (string, error)
}

// NewBackend returns the conversion backend selected by cfg.Backend.
func NewBackend(cfg types.ReaderConfig) (Backend, error) {
	switch cfg.Backend {
	case types.BackendContainer, "":
		return NewContainerBackend(cfg.Container), nil
	case types.BackendHTTP:
		return NewHTTPBackend(cfg.HTTP)
	default:
		return nil, fmt.Errorf("unknown reader backend %q: use %s or %s",
			cfg.Backend, types.BackendContainer, types.BackendHTTP)
	}
}

// ContainerBackend converts pages by piping them through a marker image.
// The image reads a PDF on stdin and writes markdown to stdout.
type ContainerBackend struct {
	cfg     types.ContainerConfig
	image   string
	runtime container.Runtime
}

// NewContainerBackend creates a backend for cfg. The container runtime is
// resolved on the first Load.
func NewContainerBackend(cfg types.ContainerConfig) *ContainerBackend {
	image := cfg.Image
	if image == "" {
		image = defaultMarkerImage
	}
	return &ContainerBackend{cfg: cfg, image: image}
}

// Load resolves the runtime and verifies that the marker image exists.
func (b *ContainerBackend) Load(_ context.Context) (PageConverter, error) {
	if b.runtime == nil {
		rt, err := container.SelectRuntime(b.cfg.Runtime)
		if err != nil {
			return nil, err
		}
		b.runtime = rt
	}
	if err := b.runtime.ImageExists(b.image); err != nil {
		return nil, fmt.Errorf("marker image not available in %s: %w", b.runtime.Name(), err)
	}
	return &markerContainer{runtime: b.runtime, image: b.image, runArgs: b.cfg.RunArgs}, nil
}

type markerContainer struct {
	runtime container.Runtime
	image   string
	runArgs []string
}

func (m *markerContainer) ConvertPage(ctx context.Context, pagePath string, opts ConvertOptions) (string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", fmt.Errorf("opening page %s: %w", pagePath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	runOpts := container.RunOptions{RunArgs: m.runArgs, Args: markerArgs(opts)}
	if err := m.runtime.Run(ctx, m.image, runOpts, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with marker: %w", pagePath, err)
	}
	// A blank page converts to empty markdown.
	return out.String(), nil
}

// markerArgs builds the marker entrypoint arguments. Unset limits are
// omitted so the model applies its own defaults.
func markerArgs(opts ConvertOptions) []string {
	var args []string
	if opts.MaxPages > 0 {
		args = append(args, "--max_pages", strconv.Itoa(opts.MaxPages))
	}
	if len(opts.Languages) > 0 {
		args = append(args, "--langs", strings.Join(opts.Languages, ","))
	}
	args = append(args, "--batch_multiplier", strconv.Itoa(opts.BatchMultiplier))
	if opts.StartPage != nil {
		args = append(args, "--start_page", strconv.Itoa(*opts.StartPage))
	}
	return args
}
