package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFC unicode normalization and collapses runs of
// whitespace to single spaces. The audio concat invariant — chunk texts
// joined in order reproduce the transcript — holds up to this normalization.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
