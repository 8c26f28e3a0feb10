// Package converters renders solved homework pages as downloadable documents.
package converters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

var ErrNothingToExport = errors.New("no page has any problems to export")

// Page is one item paired with its solution
type Page struct {
	Item     models.FileItem
	Solution models.Solution
}

// SolutionConverter renders pages in one output format
type SolutionConverter interface {
	Convert(title string, pages []Page) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the converter for "markdown" (default) or "html"
func ForFormat(format string) (SolutionConverter, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return NewMarkdownConverter(), nil
	case "html":
		return NewHTMLConverter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// exportable keeps pages with at least one problem, in order
func exportable(pages []Page) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		if len(p.Solution.Problems) > 0 {
			out = append(out, p)
		}
	}
	return out
}
