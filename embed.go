package fathom

import (
	"context"
	"fmt"
	"strings"
)

// ModalityEmbedder turns a processed chunk into one or more embedding
// vectors. Implementations must be idempotent — re-embedding the same
// content yields a vector within floating-point tolerance of the prior
// one — and side-effect-free beyond writing vectors into the chunk.
//
// Adding a modality means adding one ModalityEmbedder implementation;
// the store and retriever stay modality-agnostic.
type ModalityEmbedder interface {
	Modality() Modality
	Embed(ctx context.Context, c *Chunk) error
}

// --- Table embedder ---

// TableEmbedder computes two independent vectors per table chunk: one for
// the natural-language caption, one for the exact markdown serialization.
// The two are never merged; collapsing them measurably degrades either
// semantic or structured-query accuracy.
type TableEmbedder struct {
	provider EmbeddingProvider
}

var _ ModalityEmbedder = (*TableEmbedder)(nil)

// NewTableEmbedder creates a table embedder backed by a text embedding provider.
func NewTableEmbedder(provider EmbeddingProvider) *TableEmbedder {
	return &TableEmbedder{provider: provider}
}

func (e *TableEmbedder) Modality() Modality { return ModalityTable }

// Embed populates the caption vector, and the serialization vector unless
// the chunk is flagged truncated. Both texts go out in a single provider
// call so cost stays O(1) per chunk.
func (e *TableEmbedder) Embed(ctx context.Context, c *Chunk) error {
	if c.Table == nil {
		return &ErrMalformedInput{Kind: "table", Reason: "chunk has no table payload"}
	}
	texts := []string{c.Table.Caption}
	if !c.Truncated {
		texts = append(texts, c.Table.Serialization)
	}
	vecs, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed table chunk %s: %w", c.ID, err)
	}
	if len(vecs) != len(texts) {
		return &ErrProvider{Provider: e.provider.Name(), Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vecs))}
	}
	c.SetVector(KindCaption, vecs[0])
	if !c.Truncated {
		c.SetVector(KindSerialization, vecs[1])
	}
	return nil
}

// --- Audio embedder ---

// audioEmbedTemplate is the fixed template that folds topic and entity
// context into the embedded text, so timestamp and entity signals influence
// retrieval. Changing it invalidates stored audio vectors.
const audioEmbedTemplate = "[%s - %s] %s\nTopic: %s\nEntities: %s"

// AudioEmbedder computes one vector per audio chunk from the enriched text.
type AudioEmbedder struct {
	provider EmbeddingProvider
}

var _ ModalityEmbedder = (*AudioEmbedder)(nil)

// NewAudioEmbedder creates an audio embedder backed by a text embedding provider.
func NewAudioEmbedder(provider EmbeddingProvider) *AudioEmbedder {
	return &AudioEmbedder{provider: provider}
}

func (e *AudioEmbedder) Modality() Modality { return ModalityAudio }

func (e *AudioEmbedder) Embed(ctx context.Context, c *Chunk) error {
	if c.Audio == nil {
		return &ErrMalformedInput{Kind: "audio", Reason: "chunk has no audio payload"}
	}
	text := AudioEmbedText(c.Audio)
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed audio chunk %s: %w", c.ID, err)
	}
	if len(vecs) == 0 {
		return &ErrProvider{Provider: e.provider.Name(), Message: "no embedding returned"}
	}
	c.SetVector(KindContent, vecs[0])
	return nil
}

// AudioEmbedText renders the fixed embedding template for an audio chunk.
func AudioEmbedText(a *AudioContent) string {
	return fmt.Sprintf(audioEmbedTemplate,
		FormatTimestamp(a.StartS), FormatTimestamp(a.EndS),
		a.Text, a.Topic, strings.Join(a.Entities, ", "))
}

// FormatTimestamp renders seconds as m:ss (e.g. 92.4 -> "1:32").
func FormatTimestamp(s float64) string {
	total := int(s)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// --- Text embedder ---

// TextEmbedder computes a single content vector from the chunk's prose.
type TextEmbedder struct {
	provider EmbeddingProvider
}

var _ ModalityEmbedder = (*TextEmbedder)(nil)

// NewTextEmbedder creates a text embedder.
func NewTextEmbedder(provider EmbeddingProvider) *TextEmbedder {
	return &TextEmbedder{provider: provider}
}

func (e *TextEmbedder) Modality() Modality { return ModalityText }

func (e *TextEmbedder) Embed(ctx context.Context, c *Chunk) error {
	if strings.TrimSpace(c.Content) == "" {
		return &ErrMalformedInput{Kind: "text", Reason: "empty content"}
	}
	vecs, err := e.provider.Embed(ctx, []string{c.Content})
	if err != nil {
		return fmt.Errorf("embed text chunk %s: %w", c.ID, err)
	}
	if len(vecs) == 0 {
		return &ErrProvider{Provider: e.provider.Name(), Message: "no embedding returned"}
	}
	c.SetVector(KindContent, vecs[0])
	return nil
}

// --- Image embedder ---

// ImageEmbedder computes a single content vector for an image chunk. When an
// ImageEmbeddingProvider is configured it embeds the image directly;
// otherwise it falls back to embedding the chunk's caption text, which keeps
// image chunks retrievable in the shared text vector space.
type ImageEmbedder struct {
	images ImageEmbeddingProvider // optional
	text   EmbeddingProvider
	loader func(ctx context.Context, ref string) (ImageData, error)
}

var _ ModalityEmbedder = (*ImageEmbedder)(nil)

// ImageEmbedderOption configures an ImageEmbedder.
type ImageEmbedderOption func(*ImageEmbedder)

// WithImageProvider sets a native image embedding backend.
func WithImageProvider(p ImageEmbeddingProvider, loader func(ctx context.Context, ref string) (ImageData, error)) ImageEmbedderOption {
	return func(e *ImageEmbedder) {
		e.images = p
		e.loader = loader
	}
}

// NewImageEmbedder creates an image embedder. text is the fallback caption
// embedding provider and must not be nil.
func NewImageEmbedder(text EmbeddingProvider, opts ...ImageEmbedderOption) *ImageEmbedder {
	e := &ImageEmbedder{text: text}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *ImageEmbedder) Modality() Modality { return ModalityImage }

func (e *ImageEmbedder) Embed(ctx context.Context, c *Chunk) error {
	if e.images != nil && e.loader != nil && c.ImageRef != "" {
		img, err := e.loader(ctx, c.ImageRef)
		if err != nil {
			return fmt.Errorf("load image %s: %w", c.ImageRef, err)
		}
		vec, err := e.images.EmbedImage(ctx, img)
		if err != nil {
			return fmt.Errorf("embed image chunk %s: %w", c.ID, err)
		}
		c.SetVector(KindContent, vec)
		return nil
	}

	if strings.TrimSpace(c.Content) == "" {
		return &ErrMalformedInput{Kind: "image", Reason: "no caption to embed"}
	}
	vecs, err := e.text.Embed(ctx, []string{c.Content})
	if err != nil {
		return fmt.Errorf("embed image caption %s: %w", c.ID, err)
	}
	if len(vecs) == 0 {
		return &ErrProvider{Provider: e.text.Name(), Message: "no embedding returned"}
	}
	c.SetVector(KindContent, vecs[0])
	return nil
}
