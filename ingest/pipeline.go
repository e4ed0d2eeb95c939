package ingest

import (
	"context"
	"fmt"

	fathom "github.com/fathomlabs/fathom"
)

// Ingestor is the sink a Pipeline feeds processed chunks into. It is
// implemented by fathom.Engine.
type Ingestor interface {
	IngestChunks(ctx context.Context, documentID string, chunks []fathom.Chunk) (fathom.IngestReport, error)
}

// Pipeline binds the modality processors to an ingestion sink, giving
// callers one-call ingestion per modality without wiring processors by hand.
type Pipeline struct {
	sink      Ingestor
	tables    *TableProcessor
	audio     *AudioProcessor
	captioner fathom.ImageCaptioner
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTableProcessor replaces the default table processor.
func WithTableProcessor(p *TableProcessor) PipelineOption {
	return func(pl *Pipeline) { pl.tables = p }
}

// WithAudioProcessor replaces the default audio processor.
func WithAudioProcessor(p *AudioProcessor) PipelineOption {
	return func(pl *Pipeline) { pl.audio = p }
}

// WithImageCaptioner sets the captioner used by IngestImage.
func WithImageCaptioner(c fathom.ImageCaptioner) PipelineOption {
	return func(pl *Pipeline) { pl.captioner = c }
}

// NewPipeline creates a Pipeline over the given sink. captioner produces
// table captions and is required; the audio enricher may be nil.
func NewPipeline(sink Ingestor, captioner fathom.TableCaptioner, enricher fathom.AudioEnricher, opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{
		sink:   sink,
		tables: NewTableProcessor(captioner),
		audio:  NewAudioProcessor(enricher),
	}
	for _, o := range opts {
		o(pl)
	}
	return pl
}

// IngestTable processes a grid into table chunks and ingests them.
// Chunks skipped before embedding (caption failures) are merged into the
// returned report.
func (p *Pipeline) IngestTable(ctx context.Context, documentID string, grid fathom.Grid) (fathom.IngestReport, error) {
	chunks, skipped, err := p.tables.Process(ctx, documentID, grid)
	if err != nil {
		return fathom.IngestReport{DocumentID: documentID}, err
	}
	if len(chunks) == 0 {
		return fathom.IngestReport{DocumentID: documentID, Skipped: skipped},
			fmt.Errorf("ingest table %s: every chunk skipped before embedding", documentID)
	}
	report, err := p.sink.IngestChunks(ctx, documentID, chunks)
	report.Skipped = append(skipped, report.Skipped...)
	return report, err
}

// IngestTranscript merges transcript segments into audio chunks and ingests
// them.
func (p *Pipeline) IngestTranscript(ctx context.Context, documentID string, segments []fathom.Segment) (fathom.IngestReport, error) {
	chunks, err := p.audio.Process(ctx, documentID, segments)
	if err != nil {
		return fathom.IngestReport{DocumentID: documentID}, err
	}
	return p.sink.IngestChunks(ctx, documentID, chunks)
}

// IngestText turns prose blocks into text chunks and ingests them.
func (p *Pipeline) IngestText(ctx context.Context, documentID string, blocks []string) (fathom.IngestReport, error) {
	return p.sink.IngestChunks(ctx, documentID, ProcessText(documentID, blocks))
}

// IngestImage captions the image, builds its chunk, and ingests it.
// Requires an ImageCaptioner.
func (p *Pipeline) IngestImage(ctx context.Context, documentID, ref string, img fathom.ImageData) (fathom.IngestReport, error) {
	if p.captioner == nil {
		return fathom.IngestReport{DocumentID: documentID},
			fmt.Errorf("ingest image %s: no image captioner configured", documentID)
	}
	caption, err := p.captioner.CaptionImage(ctx, img)
	if err != nil {
		return fathom.IngestReport{DocumentID: documentID}, fmt.Errorf("caption image: %w", err)
	}
	chunk, err := ProcessImage(documentID, ref, caption, 0)
	if err != nil {
		return fathom.IngestReport{DocumentID: documentID}, err
	}
	return p.sink.IngestChunks(ctx, documentID, []fathom.Chunk{chunk})
}
