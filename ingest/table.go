// Package ingest turns raw extracted content — tabular grids, timestamped
// transcript segments, prose, images — into chunks ready for embedding.
// It also provides convenience extractors (CSV, markdown, PDF, HTML) that
// feed the processors; the engine core consumes parsed content only.
package ingest

import (
	"context"
	"fmt"
	"strings"

	fathom "github.com/fathomlabs/fathom"
)

// Default table processing bounds.
const (
	DefaultRowThreshold = 50
	DefaultRowOverlap   = 5

	// DefaultMaxSerializationBytes bounds the markdown serialization kept
	// per chunk. Beyond it the chunk keeps only its caption vector and is
	// flagged truncated.
	DefaultMaxSerializationBytes = 8 * 1024
)

// TableProcessor normalizes raw grids into bounded table chunks, each with
// an exact markdown serialization and a natural-language caption.
type TableProcessor struct {
	captioner fathom.TableCaptioner

	rowThreshold int
	rowOverlap   int
	maxSerBytes  int
}

// TableOption configures a TableProcessor.
type TableOption func(*TableProcessor)

// WithRowThreshold sets the row count above which grids are split. Default 50.
func WithRowThreshold(n int) TableOption {
	return func(p *TableProcessor) { p.rowThreshold = n }
}

// WithRowOverlap sets how many rows consecutive chunks share. Default 5.
func WithRowOverlap(n int) TableOption {
	return func(p *TableProcessor) { p.rowOverlap = n }
}

// WithMaxSerializationBytes sets the serialization size bound. Default 8 KiB.
func WithMaxSerializationBytes(n int) TableOption {
	return func(p *TableProcessor) { p.maxSerBytes = n }
}

// NewTableProcessor creates a table processor. captioner produces the
// semantic representation and is required.
func NewTableProcessor(captioner fathom.TableCaptioner, opts ...TableOption) *TableProcessor {
	p := &TableProcessor{
		captioner:    captioner,
		rowThreshold: DefaultRowThreshold,
		rowOverlap:   DefaultRowOverlap,
		maxSerBytes:  DefaultMaxSerializationBytes,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process validates and splits the grid, then produces one chunk per
// sub-grid with both representations populated. A caption failure skips
// only the affected chunk; the returned error is non-nil only when the whole
// grid is unusable.
func (p *TableProcessor) Process(ctx context.Context, documentID string, grid fathom.Grid) ([]fathom.Chunk, []fathom.SkipReason, error) {
	headers, err := repairHeaders(grid.Headers)
	if err != nil {
		return nil, nil, err
	}
	for i, row := range grid.Rows {
		if len(row) != len(headers) {
			return nil, nil, &fathom.ErrMalformedInput{
				Kind:   "table",
				Reason: fmt.Sprintf("row %d has %d cells, header has %d columns", i, len(row), len(headers)),
			}
		}
	}

	var (
		chunks  []fathom.Chunk
		skipped []fathom.SkipReason
	)
	for idx, sub := range splitRows(grid.Rows, p.rowThreshold, p.rowOverlap) {
		serialization := SerializeMarkdown(headers, sub.rows)
		truncated := len(serialization) > p.maxSerBytes

		caption, err := p.captioner.CaptionTable(ctx, headers, sub.rows)
		if err != nil {
			id := fathom.NewID()
			skipped = append(skipped, fathom.SkipReason{
				ChunkID: id,
				Reason:  fmt.Sprintf("caption failed: %v", err),
			})
			continue
		}

		chunk := fathom.Chunk{
			ID:         fathom.NewID(),
			DocumentID: documentID,
			Modality:   fathom.ModalityTable,
			ChunkIndex: idx,
			Content:    serialization,
			Table: &fathom.TableContent{
				Headers:       headers,
				Rows:          sub.rows,
				RowOffset:     sub.offset,
				Serialization: serialization,
				Caption:       caption,
			},
			Metadata:  tableMetadata(grid, sub),
			Truncated: truncated,
		}
		chunks = append(chunks, chunk)
	}
	return chunks, skipped, nil
}

func tableMetadata(grid fathom.Grid, sub subGrid) map[string]string {
	md := map[string]string{
		"row_offset": fmt.Sprintf("%d", sub.offset),
		"row_count":  fmt.Sprintf("%d", len(sub.rows)),
	}
	if grid.SheetName != "" {
		md["sheet_name"] = grid.SheetName
	}
	if grid.Page > 0 {
		md["page"] = fmt.Sprintf("%d", grid.Page)
	}
	return md
}

// repairHeaders auto-suffixes duplicate non-empty column names (price,
// price_2) and names blank cells (column_3). It fails only when repair is
// impossible: no columns at all, or an entirely empty header row.
func repairHeaders(headers []string) ([]string, error) {
	if len(headers) == 0 {
		return nil, &fathom.ErrMalformedInput{Kind: "table", Reason: "grid has zero columns"}
	}
	allEmpty := true
	for _, h := range headers {
		if strings.TrimSpace(h) != "" {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return nil, &fathom.ErrMalformedInput{Kind: "table", Reason: "header row is entirely empty"}
	}

	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		out[i] = name
	}
	return out, nil
}

type subGrid struct {
	rows   [][]string
	offset int
}

// splitRows cuts data rows into overlapping windows of at most threshold
// rows. Consecutive windows share exactly overlap rows; the header row is
// duplicated into every window by the caller.
func splitRows(rows [][]string, threshold, overlap int) []subGrid {
	if len(rows) <= threshold {
		return []subGrid{{rows: rows, offset: 0}}
	}
	step := threshold - overlap
	if step <= 0 {
		step = threshold
	}
	var out []subGrid
	for start := 0; start < len(rows); start += step {
		end := start + threshold
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, subGrid{rows: rows[start:end], offset: start})
		if end == len(rows) {
			break
		}
	}
	return out
}

// SerializeMarkdown renders the grid as a markdown table, preserving exact
// cell values and column order. Pipes inside cells are escaped so the table
// round-trips through markdown parsers.
func SerializeMarkdown(headers []string, rows [][]string) string {
	var b strings.Builder
	writeRow(&b, headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)
	for _, row := range rows {
		writeRow(&b, row)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(c, "|", "\\|"))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
