package fathom

import "context"

// Provider abstracts the chat LLM backend used by the generator and the
// LLM-backed enrichment collaborators.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "gemini", "openai").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// ImageEmbeddingProvider abstracts image embedding. Implementations must
// project images into the same vector space as the text provider they are
// paired with, or retrieval scores are not comparable across modalities.
type ImageEmbeddingProvider interface {
	// EmbedImage returns an embedding vector for the given image bytes.
	EmbedImage(ctx context.Context, img ImageData) ([]float32, error)
	Dimensions() int
	Name() string
}

// TableCaptioner produces a natural-language caption for a table chunk:
// what the columns mean, notable patterns, approximate value ranges.
// Treated as an external, possibly-failing service.
type TableCaptioner interface {
	CaptionTable(ctx context.Context, headers []string, rows [][]string) (string, error)
}

// AudioEnricher derives topic, summary, and named entities from transcript
// text. Treated as a pure function of the text for idempotency purposes.
type AudioEnricher interface {
	EnrichAudio(ctx context.Context, text string) (Enrichment, error)
}

// ImageCaptioner produces a text description of an image, used as the
// retrieval-facing content of image chunks and as the embedding fallback
// when no ImageEmbeddingProvider is configured.
type ImageCaptioner interface {
	CaptionImage(ctx context.Context, img ImageData) (string, error)
}
