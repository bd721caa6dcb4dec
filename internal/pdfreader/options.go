// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfreader

import (
	"maps"
	"slices"

	"github.com/cloudwego/eino/components/document"
)

const defaultBatchMultiplier = 2

// options are the per-call settings of Load. Reader defaults come from
// types.ReaderConfig and are overridden by the With* loader options.
type options struct {
	MaxPages        int
	Languages       []string
	BatchMultiplier int
	StartPage       *int
	ExtraMeta       map[string]any
}

// WithMaxPages caps the pages the conversion model processes per page file.
// Zero means no limit.
func WithMaxPages(n int) document.LoaderOption {
	return document.WrapLoaderImplSpecificOptFn(func(o *options) {
		o.MaxPages = n
	})
}

// WithLanguages sets explicit OCR language hints, disabling inference from
// the file name.
func WithLanguages(langs ...string) document.LoaderOption {
	return document.WrapLoaderImplSpecificOptFn(func(o *options) {
		o.Languages = slices.Clone(langs)
	})
}

// WithBatchMultiplier scales the conversion model's batch sizes.
func WithBatchMultiplier(n int) document.LoaderOption {
	return document.WrapLoaderImplSpecificOptFn(func(o *options) {
		o.BatchMultiplier = n
	})
}

// WithStartPage sets the first page handed to the conversion model.
func WithStartPage(page int) document.LoaderOption {
	return document.WrapLoaderImplSpecificOptFn(func(o *options) {
		o.StartPage = &page
	})
}

// WithExtraMeta adds caller metadata to every produced document. The map is
// copied per document; title and page_number always take precedence.
func WithExtraMeta(meta map[string]any) document.LoaderOption {
	return document.WrapLoaderImplSpecificOptFn(func(o *options) {
		o.ExtraMeta = maps.Clone(meta)
	})
}

// convertOptions resolves the conversion settings for the PDF named name.
func (o *options) convertOptions(name string) ConvertOptions {
	langs := o.Languages
	if len(langs) == 0 {
		langs = inferLanguages(name)
	}
	batch := o.BatchMultiplier
	if batch <= 0 {
		batch = defaultBatchMultiplier
	}
	return ConvertOptions{
		MaxPages:        o.MaxPages,
		Languages:       langs,
		BatchMultiplier: batch,
		StartPage:       o.StartPage,
	}
}
