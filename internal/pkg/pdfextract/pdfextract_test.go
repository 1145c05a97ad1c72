package pdfextract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a one-page PDF with a correct xref table.
func minimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestLoad_ReadsPages(t *testing.T) {
	b := minimalPDF("Photosynthesis converts light")
	pages, err := Load(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, strings.ReplaceAll(pages[0].Text, " ", ""), "Photosynthesis")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("Hello"), 0o600))

	pages, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestLoad_RejectsGarbage(t *testing.T) {
	for name, input := range map[string][]byte{
		"empty":     nil,
		"plain":     []byte("this is just a text file, not a pdf"),
		"truncated": minimalPDF("Hello")[:40],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(input))
			assert.ErrorIs(t, err, ErrUnreadable)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreadable)
}
