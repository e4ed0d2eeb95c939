package ingest

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	fathom "github.com/fathomlabs/fathom"
)

// MarkdownContent is the result of splitting a markdown document into prose
// blocks and embedded tables.
type MarkdownContent struct {
	TextBlocks []string
	Grids      []fathom.Grid
}

// ExtractMarkdown parses markdown and separates pipe tables from prose.
// Tables become Grids for the table processor; every other top-level block
// becomes a text block.
func ExtractMarkdown(source []byte) (MarkdownContent, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	var out MarkdownContent
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if table, ok := node.(*east.Table); ok {
			grid := tableToGrid(table, source)
			if len(grid.Headers) > 0 {
				out.Grids = append(out.Grids, grid)
			}
			continue
		}
		if block := NormalizeText(nodeText(node, source)); block != "" {
			out.TextBlocks = append(out.TextBlocks, block)
		}
	}
	return out, nil
}

func tableToGrid(table *east.Table, source []byte) fathom.Grid {
	var grid fathom.Grid
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, NormalizeText(nodeText(cell, source)))
		}
		if _, ok := row.(*east.TableHeader); ok {
			grid.Headers = cells
			continue
		}
		// Pad ragged rows to the header width.
		for len(cells) < len(grid.Headers) {
			cells = append(cells, "")
		}
		grid.Rows = append(grid.Rows, cells)
	}
	return grid
}

// nodeText collects the raw text content beneath a node.
func nodeText(node ast.Node, source []byte) string {
	var buf []byte
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			buf = append(buf, t.Segment.Value(source)...)
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf = append(buf, ' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return string(buf)
}
