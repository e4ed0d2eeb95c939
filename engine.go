package fathom

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Engine is the core orchestrator that connects ingestion, modality
// embedders, a VectorStore, and answer generation.
type Engine struct {
	store     VectorStore
	embedding EmbeddingProvider
	generator Generator
	embedders map[Modality]ModalityEmbedder
	retriever *Retriever
	logger    *slog.Logger

	embedConcurrency int
	retrieverOpts    []RetrieverOption
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStore sets the vector store. Required.
func WithStore(s VectorStore) EngineOption { return func(e *Engine) { e.store = s } }

// WithEmbedding sets the embedding provider used for queries and as the
// default provider for all modality embedders. Required.
func WithEmbedding(p EmbeddingProvider) EngineOption {
	return func(e *Engine) { e.embedding = p }
}

// WithGenerator sets the answer generator. When unset, Answer returns
// evidence with the fixed insufficient-evidence text.
func WithGenerator(g Generator) EngineOption { return func(e *Engine) { e.generator = g } }

// WithEmbedder overrides the embedder for one modality, replacing the
// default built from the engine's embedding provider.
func WithEmbedder(m ModalityEmbedder) EngineOption {
	return func(e *Engine) { e.embedders[m.Modality()] = m }
}

// WithLogger sets a structured logger for the engine.
func WithLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.logger = l } }

// WithEmbedConcurrency bounds the number of chunks embedded in parallel
// during ingestion. Default 4.
func WithEmbedConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.embedConcurrency = n
		}
	}
}

// WithRetrieverOptions forwards options to the engine's internal Retriever.
func WithRetrieverOptions(opts ...RetrieverOption) EngineOption {
	return func(e *Engine) { e.retrieverOpts = append(e.retrieverOpts, opts...) }
}

// NewEngine creates an Engine with the given options.
// It returns an error when the store or embedding provider is missing.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		embedders:        make(map[Modality]ModalityEmbedder),
		logger:           NopLogger(),
		embedConcurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, fmt.Errorf("fathom: engine requires a VectorStore")
	}
	if e.embedding == nil {
		return nil, fmt.Errorf("fathom: engine requires an EmbeddingProvider")
	}
	// Default embedders for any modality not explicitly overridden.
	if _, ok := e.embedders[ModalityText]; !ok {
		e.embedders[ModalityText] = NewTextEmbedder(e.embedding)
	}
	if _, ok := e.embedders[ModalityTable]; !ok {
		e.embedders[ModalityTable] = NewTableEmbedder(e.embedding)
	}
	if _, ok := e.embedders[ModalityAudio]; !ok {
		e.embedders[ModalityAudio] = NewAudioEmbedder(e.embedding)
	}
	if _, ok := e.embedders[ModalityImage]; !ok {
		e.embedders[ModalityImage] = NewImageEmbedder(e.embedding)
	}
	e.retriever = NewRetriever(e.store, e.embedding, e.retrieverOpts...)
	return e, nil
}

// Init initializes the underlying store.
func (e *Engine) Init(ctx context.Context) error {
	return e.store.Init(ctx)
}

// Retriever exposes the engine's retriever for callers that want raw
// evidence without answer generation.
func (e *Engine) Retriever() *Retriever { return e.retriever }

// IngestChunks embeds the given chunks and stores them atomically under
// documentID, replacing any chunks previously stored for that document.
//
// Embedding runs concurrently with bounded parallelism. A chunk whose
// embedding fails permanently is dropped from the stored set and reported
// in the returned IngestReport; transient failures surface through the
// provider's own retry wrapper before reaching here. An all-chunks-failed
// ingest returns an error instead of silently storing nothing.
func (e *Engine) IngestChunks(ctx context.Context, documentID string, chunks []Chunk) (IngestReport, error) {
	report := IngestReport{DocumentID: documentID}
	if documentID == "" {
		return report, &ErrMalformedInput{Kind: "document", Reason: "empty document id"}
	}
	if len(chunks) == 0 {
		return report, &ErrMalformedInput{Kind: "document", Reason: "no chunks to ingest"}
	}

	var mu sync.Mutex
	var stored []Chunk

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.embedConcurrency)
	for i := range chunks {
		chunk := chunks[i]
		g.Go(func() error {
			embedder, ok := e.embedders[chunk.Modality]
			if !ok {
				mu.Lock()
				report.Skipped = append(report.Skipped, SkipReason{
					ChunkID: chunk.ID,
					Reason:  fmt.Sprintf("no embedder for modality %q", chunk.Modality),
				})
				mu.Unlock()
				return nil
			}
			if err := embedder.Embed(gctx, &chunk); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("fathom: chunk embedding failed, skipping",
					"chunk", ChunkKey(chunk), "chunk_id", chunk.ID, "error", err)
				mu.Lock()
				report.Skipped = append(report.Skipped, SkipReason{ChunkID: chunk.ID, Reason: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			stored = append(stored, chunk)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if len(stored) == 0 {
		return report, fmt.Errorf("fathom: all %d chunks failed to embed for document %s", len(chunks), documentID)
	}

	// Stable order: embedding concurrency must not change stored layout.
	sortChunksByIndex(stored)

	if err := e.store.UpsertDocument(ctx, documentID, stored); err != nil {
		return report, fmt.Errorf("fathom: store document %s: %w", documentID, err)
	}
	report.Stored = len(stored)
	e.logger.Info("fathom: document ingested",
		"document_id", documentID, "stored", report.Stored, "skipped", len(report.Skipped))
	return report, nil
}

// DeleteDocument removes a previously ingested document and all its chunks.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	return e.store.DeleteDocument(ctx, documentID)
}

// Answer routes the query, retrieves fused cross-modal evidence, and
// generates a grounded answer with citations.
func (e *Engine) Answer(ctx context.Context, query string) (Answer, []EvidenceItem, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, nil, ErrEmptyQuery
	}

	evidence, route, err := e.retriever.Retrieve(ctx, query)
	if err != nil {
		return Answer{}, nil, err
	}
	e.logger.Debug("fathom: retrieved evidence",
		"query", query, "items", len(evidence),
		"structured", route.Intent.Structured, "temporal", route.Intent.Temporal)

	if e.generator == nil {
		if len(evidence) == 0 {
			return Answer{Text: InsufficientEvidenceAnswer}, nil, nil
		}
		return Answer{}, evidence, nil
	}

	answer, err := e.generator.Generate(ctx, query, evidence, route)
	if err != nil {
		return Answer{}, evidence, err
	}
	return answer, evidence, nil
}

func sortChunksByIndex(chunks []Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].ChunkIndex != chunks[j].ChunkIndex {
			return chunks[i].ChunkIndex < chunks[j].ChunkIndex
		}
		return chunks[i].ID < chunks[j].ID
	})
}
