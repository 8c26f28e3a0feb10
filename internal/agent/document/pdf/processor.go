// Package pdf inspects uploaded PDFs before they are accepted as pages.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

const MimeType = "application/pdf"

var ErrNoPages = errors.New("pdf has no pages")

// Metadata is what ingestion needs to know about a PDF
type Metadata struct {
	Pages  int    `json:"pages"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	// HasText reports whether the first page carries a text layer
	HasText bool `json:"hasText"`
}

type Processor struct {
	logger logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{logger: log.Named("pdf")}
}

func (p *Processor) CanProcess(mimeType string) bool {
	return mimeType == MimeType
}

// Inspect parses content and reports page count and document info. A
// document that the parser cannot open is an error.
func (p *Processor) Inspect(ctx context.Context, content []byte) (meta Metadata, err error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	// the parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	meta.Pages = pdfReader.NumPage()
	if meta.Pages == 0 {
		return meta, ErrNoPages
	}

	trailer := pdfReader.Trailer()
	if !trailer.IsNull() {
		info := trailer.Key("Info")
		if !info.IsNull() {
			if title := info.Key("Title"); !title.IsNull() {
				meta.Title = strings.TrimSpace(title.Text())
			}
			if author := info.Key("Author"); !author.IsNull() {
				meta.Author = strings.TrimSpace(author.Text())
			}
		}
	}

	page := pdfReader.Page(1)
	if !page.V.IsNull() {
		if text, terr := page.GetPlainText(nil); terr == nil {
			meta.HasText = strings.TrimSpace(text) != ""
		}
	}

	p.logger.Debug("PDF inspected",
		logger.Int("pages", meta.Pages),
		logger.Bool("hasText", meta.HasText),
	)
	return meta, nil
}
