// Package pdfextract reads the plain text of a PDF page by page.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable means the input is not a PDF the parser can read.
var ErrUnreadable = errors.New("unreadable pdf")

type Page struct {
	Number int
	Text   string
}

// LoadFile extracts the text of every page of the PDF at path.
func LoadFile(path string) ([]Page, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf file failed: %w", err)
	}
	return Load(bytes.NewReader(b), int64(len(b)))
}

// Read is Load for a stream.
func Read(r io.Reader) ([]Page, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w", err)
	}
	return Load(bytes.NewReader(b), int64(len(b)))
}

// Load returns pages that have text. Pages whose content cannot be decoded are
// skipped; a document that cannot be opened at all yields ErrUnreadable.
func Load(r io.ReaderAt, size int64) (pages []Page, err error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	// the parser panics on some malformed files
	defer func() {
		if p := recover(); p != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	total := reader.NumPage()
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: n, Text: text})
	}
	return pages, nil
}
