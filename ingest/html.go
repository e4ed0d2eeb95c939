package ingest

import (
	"strings"

	"github.com/go-shiori/go-readability"

	fathom "github.com/fathomlabs/fathom"
)

// ExtractHTML reduces an HTML page to its readable article text.
func ExtractHTML(html string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return "", &fathom.ErrMalformedInput{Kind: "text", Reason: "parse html: " + err.Error()}
	}
	text := NormalizeText(article.TextContent)
	if text == "" {
		return "", &fathom.ErrMalformedInput{Kind: "text", Reason: "no readable content"}
	}
	return text, nil
}
