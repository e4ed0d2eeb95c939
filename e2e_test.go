package fathom_test

import (
	"context"
	"strings"
	"testing"

	fathom "github.com/fathomlabs/fathom"
	"github.com/fathomlabs/fathom/ingest"
	"github.com/fathomlabs/fathom/store/memory"
)

// flatEmbedding maps every text to the same unit vector, so fused ranking
// is decided purely by the routed modality weights.
type flatEmbedding struct{}

func (flatEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (flatEmbedding) Dimensions() int { return 4 }
func (flatEmbedding) Name() string    { return "flat" }

// recordingProvider returns a fixed completion and keeps every request so
// tests can inspect the prompt the generator built.
type recordingProvider struct {
	response string
	requests []fathom.ChatRequest
}

func (p *recordingProvider) Chat(_ context.Context, req fathom.ChatRequest) (fathom.ChatResponse, error) {
	p.requests = append(p.requests, req)
	return fathom.ChatResponse{Content: p.response}, nil
}

func (p *recordingProvider) Name() string { return "recording" }

type fixedCaptioner struct{ caption string }

func (c fixedCaptioner) CaptionTable(context.Context, []string, [][]string) (string, error) {
	return c.caption, nil
}

// TestEndToEndStructuredTableQuery runs the full pipeline — table processor,
// embedders, in-memory store, retriever, generator — and checks that a
// comparison query surfaces the table chunk through its serialization, with
// the exact cell values intact in the generator prompt.
func TestEndToEndStructuredTableQuery(t *testing.T) {
	ctx := context.Background()
	provider := &recordingProvider{response: "The Gadget is priced at 150 [1]."}

	engine, err := fathom.NewEngine(
		fathom.WithStore(memory.New()),
		fathom.WithEmbedding(flatEmbedding{}),
		fathom.WithGenerator(fathom.NewLLMGenerator(provider)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Init(ctx); err != nil {
		t.Fatal(err)
	}

	grid := fathom.Grid{
		Headers: []string{"product", "price"},
		Rows: [][]string{
			{"Widget", "25"},
			{"Gadget", "150"},
			{"Doohickey", "75"},
		},
	}
	proc := ingest.NewTableProcessor(fixedCaptioner{caption: "Product prices ranging from 25 to 150."})
	chunks, skipped, err := proc.Process(ctx, "doc-products", grid)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || len(skipped) != 0 {
		t.Fatalf("chunks = %d skipped = %d, want 1 and 0", len(chunks), len(skipped))
	}
	prose := ingest.ProcessText("doc-products", []string{"Our catalog covers three products for hobbyists."})
	for i := range prose {
		prose[i].ChunkIndex += len(chunks)
	}

	report, err := engine.IngestChunks(ctx, "doc-products", append(chunks, prose...))
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 2 || len(report.Skipped) != 0 {
		t.Fatalf("stored = %d skipped = %d, want 2 and 0", report.Stored, len(report.Skipped))
	}

	answer, evidence, err := engine.Answer(ctx, "which products have a price greater than 100?")
	if err != nil {
		t.Fatal(err)
	}

	if len(evidence) != 2 {
		t.Fatalf("evidence = %d items, want 2", len(evidence))
	}
	top := evidence[0]
	if top.Modality != fathom.ModalityTable {
		t.Errorf("top evidence modality = %s, want table", top.Modality)
	}
	if top.Kind != fathom.KindSerialization {
		t.Errorf("top evidence matched kind = %s, want serialization", top.Kind)
	}
	if top.Score <= evidence[1].Score {
		t.Errorf("table score %v should outrank text score %v", top.Score, evidence[1].Score)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.requests))
	}
	var prompt strings.Builder
	for _, m := range provider.requests[0].Messages {
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}
	if !strings.Contains(prompt.String(), "| Gadget | 150 |") {
		t.Errorf("generator prompt lacks the exact serialized row:\n%s", prompt.String())
	}

	if len(answer.Citations) != 1 {
		t.Fatalf("citations = %v, want exactly one", answer.Citations)
	}
	if got := answer.Citations[0]; got.ChunkID != chunks[0].ID || got.Modality != fathom.ModalityTable {
		t.Errorf("citation = %+v, want table chunk %s", got, chunks[0].ID)
	}
}
