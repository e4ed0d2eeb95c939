package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	fathom "github.com/fathomlabs/fathom"
)

func textChunk(id, docID string, index int, vec []float32) fathom.Chunk {
	c := fathom.Chunk{
		ID:         id,
		DocumentID: docID,
		Modality:   fathom.ModalityText,
		ChunkIndex: index,
		Content:    "content of " + id,
	}
	if vec != nil {
		c.SetVector(fathom.KindContent, vec)
	}
	return c
}

func tableChunk(id, docID string, caption, serialization []float32) fathom.Chunk {
	c := fathom.Chunk{
		ID:         id,
		DocumentID: docID,
		Modality:   fathom.ModalityTable,
		Content:    "| a |",
		Table:      &fathom.TableContent{Caption: "cap", Serialization: "| a |"},
	}
	if caption != nil {
		c.SetVector(fathom.KindCaption, caption)
	}
	if serialization != nil {
		c.SetVector(fathom.KindSerialization, serialization)
	}
	return c
}

func TestUpsertAndSearch(t *testing.T) {
	s := New()
	ctx := context.Background()

	chunks := []fathom.Chunk{
		textChunk("c1", "d1", 0, []float32{1, 0}),
		textChunk("c2", "d1", 1, []float32{0, 1}),
	}
	if err := s.UpsertDocument(ctx, "d1", chunks); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("top result = %s, want c1", results[0].Chunk.ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("identical vector score = %v, want ~1", results[0].Score)
	}
	if results[0].Kind != fathom.KindContent {
		t.Errorf("matched kind = %q, want content", results[0].Kind)
	}
}

func TestUpsertReplacesDocument(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := []fathom.Chunk{textChunk("old-1", "d1", 0, []float32{1})}
	if err := s.UpsertDocument(ctx, "d1", old); err != nil {
		t.Fatal(err)
	}
	replacement := []fathom.Chunk{textChunk("new-1", "d1", 0, []float32{1})}
	if err := s.UpsertDocument(ctx, "d1", replacement); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, []float32{1}, fathom.SearchFilter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "new-1" {
		t.Errorf("results = %+v, want only new-1", results)
	}

	// The superseded chunk id no longer resolves.
	got, err := s.GetChunksByIDs(ctx, []string{"old-1", "new-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "new-1" {
		t.Errorf("GetChunksByIDs = %+v, want only new-1", got)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.UpsertDocument(ctx, "d1", []fathom.Chunk{textChunk("c1", "d1", 0, []float32{1})})
	s.UpsertDocument(ctx, "d2", []fathom.Chunk{textChunk("c2", "d2", 0, []float32{1})})
	if err := s.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	results, _ := s.Search(ctx, []float32{1}, fathom.SearchFilter{}, 10)
	if len(results) != 1 || results[0].Chunk.ID != "c2" {
		t.Errorf("results = %+v, want only c2", results)
	}
}

func TestPendingChunksExcluded(t *testing.T) {
	s := New()
	ctx := context.Background()

	chunks := []fathom.Chunk{
		textChunk("ready", "d1", 0, []float32{1}),
		textChunk("pending", "d1", 1, nil),
	}
	s.UpsertDocument(ctx, "d1", chunks)

	results, _ := s.Search(ctx, []float32{1}, fathom.SearchFilter{}, 10)
	if len(results) != 1 || results[0].Chunk.ID != "ready" {
		t.Errorf("results include pending chunk: %+v", results)
	}

	// Pending chunks are still stored and fetchable.
	got, _ := s.GetChunksByIDs(ctx, []string{"pending"})
	if len(got) != 1 {
		t.Error("pending chunk not stored")
	}
}

func TestSearchModalityFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.UpsertDocument(ctx, "d1", []fathom.Chunk{
		textChunk("text-1", "d1", 0, []float32{1, 0}),
		tableChunk("table-1", "d1", []float32{1, 0}, []float32{1, 0}),
	})

	results, _ := s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{
		Modalities: []fathom.Modality{fathom.ModalityTable},
	}, 10)
	if len(results) != 1 || results[0].Chunk.ID != "table-1" {
		t.Errorf("results = %+v, want only table-1", results)
	}
}

func TestSearchDocumentFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.UpsertDocument(ctx, "d1", []fathom.Chunk{textChunk("c1", "d1", 0, []float32{1})})
	s.UpsertDocument(ctx, "d2", []fathom.Chunk{textChunk("c2", "d2", 0, []float32{1})})

	results, _ := s.Search(ctx, []float32{1}, fathom.SearchFilter{DocumentID: "d2"}, 10)
	if len(results) != 1 || results[0].Chunk.ID != "c2" {
		t.Errorf("results = %+v, want only c2", results)
	}
}

func TestSearchTableKind(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Caption vector points one way, serialization the other.
	s.UpsertDocument(ctx, "d1", []fathom.Chunk{
		tableChunk("t1", "d1", []float32{1, 0}, []float32{0, 1}),
	})

	results, _ := s.Search(ctx, []float32{0, 1}, fathom.SearchFilter{
		TableKind: fathom.KindSerialization,
	}, 10)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Kind != fathom.KindSerialization {
		t.Errorf("matched kind = %q, want serialization", results[0].Kind)
	}
	if results[0].Score < 0.999 {
		t.Errorf("score = %v, want ~1 against serialization vector", results[0].Score)
	}
}

func TestSearchTableKindCaptionFallback(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Truncated chunk: caption vector only.
	truncated := tableChunk("t1", "d1", []float32{1, 0}, nil)
	truncated.Truncated = true
	s.UpsertDocument(ctx, "d1", []fathom.Chunk{truncated})

	results, _ := s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{
		TableKind: fathom.KindSerialization,
	}, 10)
	if len(results) != 1 {
		t.Fatalf("truncated chunk not retrievable: %+v", results)
	}
	if results[0].Kind != fathom.KindCaption {
		t.Errorf("matched kind = %q, want caption fallback", results[0].Kind)
	}
}

func TestSearchBestKindWhenUnspecified(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.UpsertDocument(ctx, "d1", []fathom.Chunk{
		tableChunk("t1", "d1", []float32{1, 0}, []float32{0, 1}),
	})

	results, _ := s.Search(ctx, []float32{0, 1}, fathom.SearchFilter{}, 10)
	if len(results) != 1 || results[0].Kind != fathom.KindSerialization {
		t.Errorf("results = %+v, want best vector (serialization)", results)
	}
}

func TestSearchOrderingAndTieBreak(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.UpsertDocument(ctx, "d1", []fathom.Chunk{
		textChunk("b", "d1", 0, []float32{1, 0}),
		textChunk("a", "d1", 1, []float32{1, 0}), // identical score, smaller id
		textChunk("c", "d1", 2, []float32{0.5, 0.5}),
	})

	results, _ := s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{}, 10)
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	gotOrder := []string{results[0].Chunk.ID, results[1].Chunk.ID, results[2].Chunk.ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if gotOrder[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotOrder, want)
		}
	}

	// k truncates.
	results, _ = s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{}, 2)
	if len(results) != 2 {
		t.Errorf("k=2 returned %d results", len(results))
	}
}

func TestConcurrentUpsertsAndSearches(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			docID := fmt.Sprintf("d%d", w)
			for i := 0; i < 50; i++ {
				chunks := []fathom.Chunk{
					textChunk(fmt.Sprintf("%s-c0-%d", docID, i), docID, 0, []float32{1, 0}),
					textChunk(fmt.Sprintf("%s-c1-%d", docID, i), docID, 1, []float32{0, 1}),
				}
				if err := s.UpsertDocument(ctx, docID, chunks); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				results, err := s.Search(ctx, []float32{1, 0}, fathom.SearchFilter{}, 100)
				if err != nil {
					t.Error(err)
					return
				}
				// Atomic visibility: a document appears with both its
				// chunks or not at all.
				perDoc := make(map[string]int)
				for _, r := range results {
					perDoc[r.Chunk.DocumentID]++
				}
				for doc, n := range perDoc {
					if n != 2 {
						t.Errorf("document %s visible with %d chunks", doc, n)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestSearchCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, []float32{1}, fathom.SearchFilter{}, 1); err == nil {
		t.Error("expected context error")
	}
}
