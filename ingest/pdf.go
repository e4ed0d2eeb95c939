package ingest

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	fathom "github.com/fathomlabs/fathom"
)

// PageText is the extracted prose of one PDF page.
type PageText struct {
	Page int
	Text string
}

// ExtractPDF extracts plain text page by page. Pages that fail to decode
// are skipped rather than failing the document.
func ExtractPDF(content []byte) ([]PageText, error) {
	if len(content) == 0 {
		return nil, &fathom.ErrMalformedInput{Kind: "text", Reason: "empty PDF content"}
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &fathom.ErrMalformedInput{Kind: "text", Reason: "open pdf: " + err.Error()}
	}

	var pages []PageText
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PageText{Page: i, Text: text})
	}
	return pages, nil
}
