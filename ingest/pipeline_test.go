package ingest

import (
	"context"
	"testing"

	fathom "github.com/fathomlabs/fathom"
)

// stubSink records ingested chunks and reports them all stored.
type stubSink struct {
	docs map[string][]fathom.Chunk
}

func newStubSink() *stubSink {
	return &stubSink{docs: make(map[string][]fathom.Chunk)}
}

func (s *stubSink) IngestChunks(ctx context.Context, documentID string, chunks []fathom.Chunk) (fathom.IngestReport, error) {
	s.docs[documentID] = chunks
	return fathom.IngestReport{DocumentID: documentID, Stored: len(chunks)}, nil
}

type stubImageCaptioner struct {
	caption string
}

func (s *stubImageCaptioner) CaptionImage(ctx context.Context, img fathom.ImageData) (string, error) {
	return s.caption, nil
}

func TestPipelineIngestTable(t *testing.T) {
	sink := newStubSink()
	p := NewPipeline(sink, &stubCaptioner{caption: "a table"}, nil)

	report, err := p.IngestTable(context.Background(), "d1", fathom.Grid{
		Headers: []string{"name", "price"},
		Rows:    [][]string{{"widget", "19.99"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 {
		t.Errorf("stored = %d, want 1", report.Stored)
	}
	if got := sink.docs["d1"]; len(got) != 1 || got[0].Modality != fathom.ModalityTable {
		t.Errorf("sink chunks = %+v", got)
	}
}

func TestPipelineIngestTableMergesSkips(t *testing.T) {
	sink := newStubSink()
	p := NewPipeline(sink, &stubCaptioner{failOn: map[int]bool{1: true}}, nil,
		WithTableProcessor(NewTableProcessor(
			&stubCaptioner{failOn: map[int]bool{1: true}},
			WithRowThreshold(2), WithRowOverlap(0),
		)))

	report, err := p.IngestTable(context.Background(), "d1", fathom.Grid{
		Headers: []string{"a"},
		Rows:    [][]string{{"1"}, {"2"}, {"3"}, {"4"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 {
		t.Errorf("stored = %d, want 1", report.Stored)
	}
	if len(report.Skipped) != 1 {
		t.Errorf("skipped = %+v, want the caption failure", report.Skipped)
	}
}

func TestPipelineIngestTranscript(t *testing.T) {
	sink := newStubSink()
	p := NewPipeline(sink, &stubCaptioner{}, nil)

	report, err := p.IngestTranscript(context.Background(), "d1", []fathom.Segment{
		{Text: "hello there", StartS: 0, EndS: 35},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 || sink.docs["d1"][0].Modality != fathom.ModalityAudio {
		t.Errorf("report = %+v, chunks = %+v", report, sink.docs["d1"])
	}
}

func TestPipelineIngestText(t *testing.T) {
	sink := newStubSink()
	p := NewPipeline(sink, &stubCaptioner{}, nil)

	report, err := p.IngestText(context.Background(), "d1", []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 2 {
		t.Errorf("stored = %d, want 2", report.Stored)
	}
}

func TestPipelineIngestImage(t *testing.T) {
	sink := newStubSink()
	p := NewPipeline(sink, &stubCaptioner{}, nil,
		WithImageCaptioner(&stubImageCaptioner{caption: "a chart"}))

	report, err := p.IngestImage(context.Background(), "d1", "chart.png",
		fathom.ImageData{MimeType: "image/png", Base64: "aGk="})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 {
		t.Errorf("stored = %d, want 1", report.Stored)
	}
	if got := sink.docs["d1"][0]; got.Content != "a chart" || got.ImageRef != "chart.png" {
		t.Errorf("chunk = %+v", got)
	}

	// Without a captioner the operation fails fast.
	bare := NewPipeline(sink, &stubCaptioner{}, nil)
	if _, err := bare.IngestImage(context.Background(), "d1", "x.png", fathom.ImageData{}); err == nil {
		t.Error("expected error without a captioner")
	}
}
