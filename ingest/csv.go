package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	fathom "github.com/fathomlabs/fathom"
)

// ExtractCSV parses CSV content into a Grid. The first row is the header.
// Short rows are padded to the header width so the grid stays rectangular;
// cell values keep their original textual form.
func ExtractCSV(content []byte) (fathom.Grid, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return fathom.Grid{}, &fathom.ErrMalformedInput{Kind: "table", Reason: "empty CSV content"}
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		return fathom.Grid{}, &fathom.ErrMalformedInput{Kind: "table", Reason: fmt.Sprintf("read headers: %v", err)}
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fathom.Grid{}, &fathom.ErrMalformedInput{Kind: "table", Reason: fmt.Sprintf("read row %d: %v", len(rows)+1, err)}
		}
		row := make([]string, len(headers))
		for i := range headers {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return fathom.Grid{Headers: headers, Rows: rows}, nil
}
