package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fathom "github.com/fathomlabs/fathom"
	"github.com/fathomlabs/fathom/ingest"
)

// runIngest dispatches a file to the modality-appropriate ingestion path
// based on its extension, then embeds and stores the resulting chunks.
func runIngest(ctx context.Context, d *deps, args []string) error {
	path, docID, err := parseIngestFlags(args)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var (
		chunks  []fathom.Chunk
		skipped []fathom.SkipReason
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		chunks, skipped, err = ingestCSV(ctx, d, docID, content)
	case ".md", ".markdown":
		chunks, skipped, err = ingestMarkdown(ctx, d, docID, content)
	case ".pdf":
		chunks, err = ingestPDF(docID, content)
	case ".html", ".htm":
		chunks, err = ingestHTML(docID, content)
	case ".txt":
		chunks = ingest.ProcessText(docID, []string{string(content)})
	case ".json":
		chunks, err = ingestTranscript(ctx, d, docID, content)
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		chunks, err = ingestImage(ctx, d, docID, path, content)
	default:
		return fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return err
	}

	report, err := d.engine.IngestChunks(ctx, docID, chunks)
	if err != nil {
		return err
	}
	report.Skipped = append(skipped, report.Skipped...)

	fmt.Printf("ingested %s as %s: %d chunks stored", path, docID, report.Stored)
	if len(report.Skipped) > 0 {
		fmt.Printf(", %d skipped", len(report.Skipped))
		for _, s := range report.Skipped {
			d.logger.Warn("chunk skipped", "chunk_id", s.ChunkID, "reason", s.Reason)
		}
	}
	fmt.Println()
	return nil
}

func ingestCSV(ctx context.Context, d *deps, docID string, content []byte) ([]fathom.Chunk, []fathom.SkipReason, error) {
	grid, err := ingest.ExtractCSV(content)
	if err != nil {
		return nil, nil, err
	}
	return d.tableProcessor().Process(ctx, docID, grid)
}

// ingestMarkdown splits a document into prose chunks and one table chunk
// set per embedded table.
func ingestMarkdown(ctx context.Context, d *deps, docID string, content []byte) ([]fathom.Chunk, []fathom.SkipReason, error) {
	md, err := ingest.ExtractMarkdown(content)
	if err != nil {
		return nil, nil, err
	}

	chunks := ingest.ProcessText(docID, md.TextBlocks)
	var skipped []fathom.SkipReason
	proc := d.tableProcessor()
	for _, grid := range md.Grids {
		tableChunks, tableSkipped, err := proc.Process(ctx, docID, grid)
		if err != nil {
			return nil, nil, err
		}
		// Reindex behind the prose chunks.
		for i := range tableChunks {
			tableChunks[i].ChunkIndex += len(chunks)
		}
		chunks = append(chunks, tableChunks...)
		skipped = append(skipped, tableSkipped...)
	}
	return chunks, skipped, nil
}

func ingestPDF(docID string, content []byte) ([]fathom.Chunk, error) {
	pages, err := ingest.ExtractPDF(content)
	if err != nil {
		return nil, err
	}
	blocks := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			blocks = append(blocks, p.Text)
		}
	}
	return ingest.ProcessText(docID, blocks), nil
}

func ingestHTML(docID string, content []byte) ([]fathom.Chunk, error) {
	text, err := ingest.ExtractHTML(string(content))
	if err != nil {
		return nil, err
	}
	return ingest.ProcessText(docID, []string{text}), nil
}

// ingestTranscript reads a JSON array of transcript segments:
//
//	[{"text": "...", "start_time_s": 0.0, "end_time_s": 12.5, "speaker": "A"}, ...]
func ingestTranscript(ctx context.Context, d *deps, docID string, content []byte) ([]fathom.Chunk, error) {
	var segments []fathom.Segment
	if err := json.Unmarshal(content, &segments); err != nil {
		return nil, fmt.Errorf("parse transcript JSON: %w", err)
	}
	proc := ingest.NewAudioProcessor(fathom.NewLLMEnricher(d.enrich),
		ingest.WithDurationWindow(d.cfg.Ingest.AudioWindowMinS, d.cfg.Ingest.AudioWindowMaxS))
	return proc.Process(ctx, docID, segments)
}

func ingestImage(ctx context.Context, d *deps, docID, path string, content []byte) ([]fathom.Chunk, error) {
	img := fathom.ImageData{
		MimeType: mimeTypeForExt(filepath.Ext(path)),
		Base64:   base64.StdEncoding.EncodeToString(content),
	}
	// Image captioning needs a vision-capable model, so it stays on the
	// main [llm] provider rather than the enrich one.
	caption, err := fathom.NewLLMImageCaptioner(d.chat).CaptionImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("caption image: %w", err)
	}
	chunk, err := ingest.ProcessImage(docID, path, caption, 0)
	if err != nil {
		return nil, err
	}
	return []fathom.Chunk{chunk}, nil
}

func (d *deps) tableProcessor() *ingest.TableProcessor {
	return ingest.NewTableProcessor(fathom.NewLLMCaptioner(d.enrich),
		ingest.WithRowThreshold(d.cfg.Ingest.TableRowThreshold),
		ingest.WithRowOverlap(d.cfg.Ingest.TableRowOverlap))
}

func mimeTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
