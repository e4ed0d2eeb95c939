// Package fathom is a cross-modal retrieval engine for Go: ingest text,
// tables, images, and audio transcripts into one vector store, then answer
// questions over all of them at once.
//
// It provides modular, interface-driven building blocks: modality-aware
// ingestion processors, per-modality embedders (tables get dual caption and
// serialization embeddings), a unified vector store contract, a lexical
// query router that weights modalities by detected intent, a weighted-fusion
// retriever, and a grounded answer generator with citations.
//
// # Quick Start
//
//	embedding := gemini.NewEmbedding(apiKey, "gemini-embedding-001", 1536)
//	chat := gemini.New(apiKey, model)
//	store := sqlite.New("fathom.db")
//
//	engine, err := fathom.NewEngine(
//		fathom.WithStore(store),
//		fathom.WithEmbedding(embedding),
//		fathom.WithGenerator(fathom.NewLLMGenerator(chat)),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := engine.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	proc := ingest.NewTableProcessor(fathom.NewLLMCaptioner(chat))
//	chunks, skipped, err := proc.Process(ctx, docID, grid)
//	report, err := engine.IngestChunks(ctx, docID, chunks)
//
//	answer, evidence, err := engine.Answer(ctx, "which product has a price greater than 100?")
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [VectorStore] — unified multi-modality persistence with vector search
//   - [Provider] — LLM backend for captioning, enrichment, and generation
//   - [EmbeddingProvider] — text-to-vector embedding
//   - [ModalityEmbedder] — per-modality chunk embedding strategy
//   - [Generator] — evidence-grounded answer generation
//
// # Included Implementations
//
// Providers: provider/gemini (Google Gemini), provider/openaicompat
// (OpenAI-compatible APIs).
// Storage: store/memory (in-process), store/sqlite (local, pure Go),
// store/postgres (pgvector).
// Ingestion: the ingest package covers CSV, Markdown, PDF, and HTML
// extraction plus table splitting and transcript windowing.
//
// See the cmd/fathom directory for a complete reference CLI.
package fathom
