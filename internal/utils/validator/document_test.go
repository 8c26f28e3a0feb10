package validator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/internal/agent/document/pdf"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type fakeInspector struct {
	pages int
	err   error
}

func (f fakeInspector) Inspect(context.Context, []byte) (pdf.Metadata, error) {
	return pdf.Metadata{Pages: f.pages}, f.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

var pdfHeader = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")

func newValidator(inspector PDFInspector) *DocumentValidator {
	return NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFileSize: 1 << 20, MaxPageCount: 5}, inspector)
}

func codes(r *ValidationResult) []string {
	var out []string
	for _, e := range r.Errors {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateImage(t *testing.T) {
	v := newValidator(nil)
	r := v.ValidateFile(context.Background(), "scan.bin", pngBytes(t, 200, 100), Options{})
	require.True(t, r.IsValid, codes(r))
	assert.Equal(t, "image/png", r.FileInfo.MimeType)
	assert.Equal(t, 200, r.FileInfo.Metadata["width"])
	assert.Len(t, r.FileInfo.Hash, 64)
}

func TestValidateRejections(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		file    string
		content []byte
		opts    Options
		insp    PDFInspector
		want    string
	}{
		{"empty", "a.png", nil, Options{}, nil, CodeEmptyFile},
		{"too large", "a.png", make([]byte, 2<<20), Options{}, nil, CodeFileTooLarge},
		{"wrong type", "notes.txt", []byte("hello world"), Options{}, nil, CodeInvalidFileType},
		{"pdf without reader", "hw.pdf", pdfHeader, Options{}, fakeInspector{pages: 1}, CodePDFNotSupported},
		{"unreadable pdf", "hw.pdf", pdfHeader, Options{AllowPDF: true}, fakeInspector{err: errors.New("bad xref")}, CodeInvalidPDF},
		{"long pdf", "hw.pdf", pdfHeader, Options{AllowPDF: true}, fakeInspector{pages: 9}, CodeTooManyPages},
		{"tiny image", "a.png", nil, Options{}, nil, CodeInvalidDimension},
		{"broken image", "a.png", []byte("\x89PNG\r\n\x1a\nbroken"), Options{}, nil, CodeInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := tt.content
			if tt.name == "tiny image" {
				content = pngBytes(t, 8, 8)
			}
			r := newValidator(tt.insp).ValidateFile(ctx, tt.file, content, tt.opts)
			assert.False(t, r.IsValid)
			assert.Equal(t, []string{tt.want}, codes(r))
		})
	}
}

func TestValidatePDF(t *testing.T) {
	v := newValidator(fakeInspector{pages: 3})
	r := v.ValidateFile(context.Background(), "worksheet.pdf", pdfHeader, Options{AllowPDF: true})
	require.True(t, r.IsValid, codes(r))
	assert.Equal(t, pdf.MimeType, r.FileInfo.MimeType)
	assert.Equal(t, 3, r.FileInfo.Metadata["pages"])
}

func TestValidateFilesKeepsOrder(t *testing.T) {
	v := newValidator(nil)
	results := v.ValidateFiles(context.Background(), []Upload{
		{Name: "a.png", Content: pngBytes(t, 64, 64)},
		{Name: "b.png"},
		{Name: "c.png", Content: pngBytes(t, 64, 64)},
	}, Options{})
	require.Len(t, results, 3)
	assert.True(t, results[0].IsValid)
	assert.False(t, results[1].IsValid)
	assert.Equal(t, "c.png", results[2].FileInfo.Filename)
}
