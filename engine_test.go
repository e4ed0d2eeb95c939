package fathom

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testEngine(t *testing.T, store VectorStore, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithStore(store),
		WithEmbedding(&stubEmbedding{vec: []float32{1, 0}}),
	}
	e, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewEngineRequiresDeps(t *testing.T) {
	if _, err := NewEngine(WithEmbedding(&stubEmbedding{vec: []float32{1}})); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewEngine(WithStore(newStubStore())); err == nil {
		t.Error("expected error without embedding provider")
	}
}

func TestIngestChunksValidation(t *testing.T) {
	e := testEngine(t, newStubStore())

	var malformed *ErrMalformedInput
	_, err := e.IngestChunks(context.Background(), "", []Chunk{{ID: "c1", Modality: ModalityText, Content: "x"}})
	if !errors.As(err, &malformed) {
		t.Errorf("empty document id: err = %v, want ErrMalformedInput", err)
	}
	_, err = e.IngestChunks(context.Background(), "d1", nil)
	if !errors.As(err, &malformed) {
		t.Errorf("no chunks: err = %v, want ErrMalformedInput", err)
	}
}

func TestIngestChunksEmbedsAndStores(t *testing.T) {
	store := newStubStore()
	e := testEngine(t, store)

	chunks := []Chunk{
		{ID: "c2", DocumentID: "d1", Modality: ModalityText, ChunkIndex: 1, Content: "second"},
		{ID: "c1", DocumentID: "d1", Modality: ModalityText, ChunkIndex: 0, Content: "first"},
		{ID: "c3", DocumentID: "d1", Modality: ModalityTable, ChunkIndex: 2, Content: "| a |",
			Table: &TableContent{Caption: "cap", Serialization: "| a |"}},
	}
	report, err := e.IngestChunks(context.Background(), "d1", chunks)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 3 || len(report.Skipped) != 0 {
		t.Fatalf("report = %+v, want 3 stored", report)
	}

	stored := store.upserts["d1"]
	if len(stored) != 3 {
		t.Fatalf("stored = %d chunks", len(stored))
	}
	// Concurrent embedding must not reorder storage.
	for i, wantID := range []string{"c1", "c2", "c3"} {
		if stored[i].ID != wantID {
			t.Errorf("stored[%d] = %s, want %s", i, stored[i].ID, wantID)
		}
	}
	if stored[0].Vector(KindContent) == nil {
		t.Error("text chunk missing content vector")
	}
	if stored[2].Vector(KindCaption) == nil || stored[2].Vector(KindSerialization) == nil {
		t.Error("table chunk missing dual vectors")
	}
}

func TestIngestChunksSkipsFailing(t *testing.T) {
	store := newStubStore()
	e := testEngine(t, store)

	chunks := []Chunk{
		{ID: "good", DocumentID: "d1", Modality: ModalityText, ChunkIndex: 0, Content: "fine"},
		{ID: "bad", DocumentID: "d1", Modality: ModalityText, ChunkIndex: 1, Content: "   "},
		{ID: "odd", DocumentID: "d1", Modality: Modality("video"), ChunkIndex: 2, Content: "x"},
	}
	report, err := e.IngestChunks(context.Background(), "d1", chunks)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 {
		t.Errorf("stored = %d, want 1", report.Stored)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("skipped = %+v, want 2 entries", report.Skipped)
	}
	if !report.Partial() {
		t.Error("report.Partial() = false, want true")
	}
	if len(store.upserts["d1"]) != 1 || store.upserts["d1"][0].ID != "good" {
		t.Errorf("stored chunks = %+v, want just good", store.upserts["d1"])
	}
}

func TestIngestChunksAllFailed(t *testing.T) {
	e := testEngine(t, newStubStore())
	chunks := []Chunk{
		{ID: "c1", DocumentID: "d1", Modality: ModalityText, Content: " "},
		{ID: "c2", DocumentID: "d1", Modality: ModalityText, Content: ""},
	}
	if _, err := e.IngestChunks(context.Background(), "d1", chunks); err == nil {
		t.Error("expected error when every chunk fails to embed")
	}
}

func TestDeleteDocument(t *testing.T) {
	store := newStubStore()
	e := testEngine(t, store)
	if err := e.DeleteDocument(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "d1" {
		t.Errorf("deleted = %v, want [d1]", store.deleted)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	e := testEngine(t, newStubStore())
	if _, _, err := e.Answer(context.Background(), "  "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestAnswerNoGeneratorNoEvidence(t *testing.T) {
	e := testEngine(t, newStubStore())
	answer, evidence, err := e.Answer(context.Background(), "anything relevant")
	if err != nil {
		t.Fatal(err)
	}
	if answer.Text != InsufficientEvidenceAnswer {
		t.Errorf("answer = %q, want the insufficient-evidence text", answer.Text)
	}
	if len(evidence) != 0 {
		t.Errorf("evidence = %d items, want 0", len(evidence))
	}
}

func TestAnswerGeneratesWithCitations(t *testing.T) {
	store := newStubStore()
	store.results[ModalityTable] = []ScoredChunk{
		{
			Chunk: Chunk{
				ID: "t1", DocumentID: "d1", Modality: ModalityTable,
				Content: "| name | price |",
				Table: &TableContent{
					Caption:       "product prices",
					Serialization: "| name | price |\n| --- | --- |\n| widget | 120 |",
				},
			},
			Score: 0.8,
			Kind:  KindSerialization,
		},
	}
	provider := &stubProvider{response: ChatResponse{Content: "The widget costs 120 [1]."}}
	e := testEngine(t, store, WithGenerator(NewLLMGenerator(provider)))

	answer, evidence, err := e.Answer(context.Background(), "which products cost more than 100")
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 1 {
		t.Fatalf("evidence = %d items", len(evidence))
	}
	if len(answer.Citations) != 1 || answer.Citations[0].ChunkID != "t1" {
		t.Errorf("citations = %+v, want t1", answer.Citations)
	}
	// Structured intent feeds the exact serialization to the LLM.
	sent := provider.requests[0].Messages[1].Content
	if want := "| widget | 120 |"; !strings.Contains(sent, want) {
		t.Errorf("prompt missing %q:\n%s", want, sent)
	}
}
