package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// buildPDF writes a minimal document with n empty pages and a title
func buildPDF(n int, title string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))
	obj(fmt.Sprintf("<< /Title (%s) /Author (Skid) >>", title))
	for i := 0; i < n; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestInspectCountsPages(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	meta, err := p.Inspect(context.Background(), buildPDF(3, "Algebra worksheet"))
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, "Algebra worksheet", meta.Title)
	assert.Equal(t, "Skid", meta.Author)
	assert.False(t, meta.HasText)
}

func TestInspectRejectsGarbage(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	_, err := p.Inspect(context.Background(), []byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestCanProcess(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	assert.True(t, p.CanProcess("application/pdf"))
	assert.False(t, p.CanProcess("image/png"))
}
