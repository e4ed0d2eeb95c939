// Package memory implements fathom.VectorStore with an in-process index.
// It is the reference implementation for the store's atomicity contract and
// the backbone of the test suite. Data does not survive process restarts.
package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	fathom "github.com/fathomlabs/fathom"
)

// StoreOption configures a memory Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements fathom.VectorStore with a mutex-guarded map. A single
// RWMutex makes document upserts and deletes atomic with respect to
// searches: a reader sees all of a document's chunks or none.
type Store struct {
	mu     sync.RWMutex
	docs   map[string][]fathom.Chunk // document id -> its chunks
	byID   map[string]chunkRef
	logger *slog.Logger
}

type chunkRef struct {
	docID string
	idx   int
}

var _ fathom.VectorStore = (*Store)(nil)

// New creates an empty in-memory store.
func New(opts ...StoreOption) *Store {
	s := &Store{
		docs:   make(map[string][]fathom.Chunk),
		byID:   make(map[string]chunkRef),
		logger: fathom.NopLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init is a no-op for the in-memory store.
func (s *Store) Init(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// UpsertDocument atomically replaces all chunks of the given document.
func (s *Store) UpsertDocument(ctx context.Context, documentID string, chunks []fathom.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]fathom.Chunk, len(chunks))
	copy(stored, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(documentID)
	s.docs[documentID] = stored
	for i, c := range stored {
		s.byID[c.ID] = chunkRef{docID: documentID, idx: i}
	}
	s.logger.Debug("memory: upsert document", "id", documentID, "chunks", len(stored))
	return nil
}

// DeleteDocument atomically removes every chunk of the given document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(documentID)
	delete(s.docs, documentID)
	s.logger.Debug("memory: delete document", "id", documentID)
	return nil
}

func (s *Store) dropLocked(documentID string) {
	for _, c := range s.docs[documentID] {
		delete(s.byID, c.ID)
	}
}

// Search scans all eligible chunks and returns the k nearest by cosine
// similarity, sorted descending with ties broken by smaller chunk id.
func (s *Store) Search(ctx context.Context, vector []float32, filter fathom.SearchFilter, k int) ([]fathom.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []fathom.ScoredChunk
	scanned := 0
	for docID, chunks := range s.docs {
		if filter.DocumentID != "" && filter.DocumentID != docID {
			continue
		}
		for _, c := range chunks {
			if c.Pending() || !filter.Matches(c.Modality) {
				continue
			}
			scanned++
			score, kind, ok := scoreChunk(&c, vector, filter.TableKind)
			if !ok {
				continue
			}
			results = append(results, fathom.ScoredChunk{Chunk: c, Score: score, Kind: kind})
		}
	}

	sortScored(results)
	if len(results) > k {
		results = results[:k]
	}
	s.logger.Debug("memory: search", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// GetChunksByIDs returns the chunks with the given ids, skipping unknown ids.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]fathom.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []fathom.Chunk
	for _, id := range ids {
		ref, ok := s.byID[id]
		if !ok {
			continue
		}
		out = append(out, s.docs[ref.docID][ref.idx])
	}
	return out, nil
}

// scoreChunk picks which of the chunk's vectors to score. Table chunks use
// the requested kind when present, falling back to caption (truncated chunks
// carry no serialization vector). Other modalities use their content vector.
// When no kind is requested, every vector is scored and the best kept.
func scoreChunk(c *fathom.Chunk, query []float32, tableKind fathom.EmbeddingKind) (float64, fathom.EmbeddingKind, bool) {
	if c.Modality == fathom.ModalityTable {
		if tableKind != "" {
			if v := c.Vector(tableKind); v != nil {
				return cosineSimilarity(query, v), tableKind, true
			}
			if v := c.Vector(fathom.KindCaption); v != nil {
				return cosineSimilarity(query, v), fathom.KindCaption, true
			}
			return 0, "", false
		}
		best := math.Inf(-1)
		var bestKind fathom.EmbeddingKind
		for _, ev := range c.Vectors {
			if score := cosineSimilarity(query, ev.Values); score > best {
				best = score
				bestKind = ev.Kind
			}
		}
		if math.IsInf(best, -1) {
			return 0, "", false
		}
		return best, bestKind, true
	}

	v := c.Vector(fathom.KindContent)
	if v == nil {
		return 0, "", false
	}
	return cosineSimilarity(query, v), fathom.KindContent, true
}

func sortScored(results []fathom.ScoredChunk) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
