// Package extract provides page- and slide-tagged text extraction from uploaded documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions with no extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Section is a unit of extracted text. Page and Slide are 1-based; zero means the
// format has no such division.
type Section struct {
	Text  string
	Page  int
	Slide int
}

// Extractor extracts plain text sections from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Ext returns the lowercase extension of filename without the leading dot.
func Ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Extract reads the file at path and returns its text sections.
func (e *Extractor) Extract(path string) ([]Section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, Ext(path))
}

// ExtractBytes extracts sections from content based on ext (with or without a leading dot).
// PDF yields one section per page, PPTX and ODP one per slide, XLSX one per sheet (as pages);
// other formats yield a single section. Blank sections are dropped.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	var (
		sections []Section
		err      error
	)
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "pdf":
		sections, err = extractPDF(content)
	case "docx":
		sections, err = single(extractDOCX(content))
	case "odt", "rtf":
		sections, err = single(extractCat(content))
	case "xlsx":
		sections, err = extractExcel(content)
	case "pptx":
		sections, err = extractPPTX(content)
	case "odp":
		sections, err = extractODP(content)
	case "ods":
		sections, err = single(extractODS(content))
	case "txt", "md", "rst":
		sections, err = single(extractPlain(content))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	out := sections[:0]
	for _, s := range sections {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// PageCount returns the highest page or slide number seen in sections.
func PageCount(sections []Section) int {
	n := 0
	for _, s := range sections {
		if s.Page > n {
			n = s.Page
		}
		if s.Slide > n {
			n = s.Slide
		}
	}
	return n
}

func single(text string, err error) ([]Section, error) {
	if err != nil {
		return nil, err
	}
	return []Section{{Text: text}}, nil
}
