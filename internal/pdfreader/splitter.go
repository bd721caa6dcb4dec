// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfreader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Splitter opens a PDF and writes its pages out as standalone files.
type Splitter interface {
	// PageCount returns the number of pages in the PDF at path.
	PageCount(path string) (int, error)

	// WritePage writes the 0-based page of src to dst as a one-page PDF.
	WritePage(src string, page int, dst string) error
}

// PDFCPUSplitter implements Splitter with pdfcpu.
type PDFCPUSplitter struct {
	conf *model.Configuration
}

// NewPDFCPUSplitter returns a splitter using pdfcpu's default configuration
// with relaxed validation, which tolerates the minor structural defects
// common in scanned PDFs.
func NewPDFCPUSplitter() *PDFCPUSplitter {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUSplitter{conf: conf}
}

func (s *PDFCPUSplitter) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return n, nil
}

func (s *PDFCPUSplitter) WritePage(src string, page int, dst string) error {
	if err := api.TrimFile(src, dst, []string{strconv.Itoa(page + 1)}, s.conf); err != nil {
		return fmt.Errorf("writing page %d of %s: %w", page+1, src, err)
	}
	return nil
}

// pagePath returns the temporary file for the 0-based page of src:
// <dir>/<stem>_<page>.pdf.
func pagePath(src string, page int) string {
	dir := filepath.Dir(src)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, stem+"_"+strconv.Itoa(page)+".pdf")
}
