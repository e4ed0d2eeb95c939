package fathom

import "context"

// SearchFilter restricts a vector search.
type SearchFilter struct {
	// Modalities restricts results to the given modalities.
	// Empty means all modalities.
	Modalities []Modality

	// TableKind selects which embedding kind to score for table chunks
	// (caption or serialization). Empty means score every vector and keep
	// the best match. Non-table chunks always match on their content vector.
	TableKind EmbeddingKind

	// DocumentID restricts results to one source document when non-empty.
	DocumentID string
}

// Matches reports whether the filter admits the given modality.
func (f SearchFilter) Matches(m Modality) bool {
	if len(f.Modalities) == 0 {
		return true
	}
	for _, fm := range f.Modalities {
		if fm == m {
			return true
		}
	}
	return false
}

// VectorStore is the unified index holding embeddings from every modality.
// It is the single synchronization point between the ingestion and query
// pipelines.
//
// Implementations must guarantee:
//   - UpsertDocument atomically replaces the document's entire chunk set;
//     a concurrent Search sees either the old set or the new set, never a mix.
//   - DeleteDocument is atomic the same way: no search observes a partial
//     subset of a document's chunks.
//   - UpsertDocument is idempotent on chunk id: re-upserting a chunk with the
//     same id replaces its vectors and metadata.
//   - Pending chunks (no vectors) are stored but excluded from Search.
//   - Search returns the k nearest eligible chunks by cosine similarity,
//     sorted by score descending, ties broken by smaller chunk id.
//   - Writes to distinct documents and all reads proceed concurrently;
//     conflicting upsert/delete pairs on the same document id serialize.
type VectorStore interface {
	// Init prepares backing storage (tables, indexes).
	Init(ctx context.Context) error

	// UpsertDocument atomically replaces all chunks of the given document.
	UpsertDocument(ctx context.Context, documentID string, chunks []Chunk) error

	// DeleteDocument atomically removes every chunk of the given document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search returns the k most similar eligible chunks under the filter.
	Search(ctx context.Context, vector []float32, filter SearchFilter, k int) ([]ScoredChunk, error)

	// GetChunksByIDs returns the chunks with the given ids, skipping unknown ids.
	GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error)

	// Close releases backing resources.
	Close() error
}
