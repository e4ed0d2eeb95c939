package fathom

import "encoding/json"

// --- Modalities and embedding kinds ---

// Modality identifies the content shape of a chunk.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityTable Modality = "table"
	ModalityAudio Modality = "audio"
)

// AllModalities lists every supported modality in a fixed order.
var AllModalities = []Modality{ModalityText, ModalityImage, ModalityTable, ModalityAudio}

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityImage, ModalityTable, ModalityAudio:
		return true
	}
	return false
}

// EmbeddingKind names the embedding strategy that produced a vector.
// Most chunks carry a single "content" vector; table chunks carry a
// "caption" vector and a "serialization" vector.
type EmbeddingKind string

const (
	KindContent       EmbeddingKind = "content"
	KindCaption       EmbeddingKind = "caption"
	KindSerialization EmbeddingKind = "serialization"
)

// EmbeddingVector is one embedding for a chunk, tagged with its kind.
type EmbeddingVector struct {
	Kind   EmbeddingKind `json:"kind"`
	Values []float32     `json:"-"`
}

// --- Domain types (store records) ---

// Chunk is the atomic retrievable unit. A chunk belongs to exactly one
// source document and one modality. It is immutable once embedded:
// re-ingesting a source produces new chunk ids that supersede the old ones.
type Chunk struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Modality   Modality `json:"modality"`
	ChunkIndex int      `json:"chunk_index"`

	// Content is the retrieval-facing text for the chunk: prose for text,
	// caption for images, the markdown serialization for tables, the
	// transcript text for audio.
	Content string `json:"content"`

	// Table holds the grid payload for table chunks, nil otherwise.
	Table *TableContent `json:"table,omitempty"`
	// Audio holds the transcript payload for audio chunks, nil otherwise.
	Audio *AudioContent `json:"audio,omitempty"`
	// ImageRef identifies the source image for image chunks.
	ImageRef string `json:"image_ref,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// Vectors holds one embedding per kind. A chunk with no vectors is
	// pending and excluded from search.
	Vectors []EmbeddingVector `json:"-"`

	// Truncated marks a table chunk whose serialization exceeded the size
	// bound; such chunks carry only a caption vector.
	Truncated bool `json:"truncated,omitempty"`
}

// Pending reports whether the chunk has no embedding vectors yet.
func (c *Chunk) Pending() bool { return len(c.Vectors) == 0 }

// Vector returns the chunk's vector of the given kind, or nil.
func (c *Chunk) Vector(kind EmbeddingKind) []float32 {
	for _, v := range c.Vectors {
		if v.Kind == kind {
			return v.Values
		}
	}
	return nil
}

// SetVector replaces or appends the vector of the given kind.
func (c *Chunk) SetVector(kind EmbeddingKind, values []float32) {
	for i := range c.Vectors {
		if c.Vectors[i].Kind == kind {
			c.Vectors[i].Values = values
			return
		}
	}
	c.Vectors = append(c.Vectors, EmbeddingVector{Kind: kind, Values: values})
}

// TableContent is the payload of a table chunk: the exact sub-grid plus its
// two parallel representations.
type TableContent struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`

	// RowOffset is the index of Rows[0] in the original grid's data rows.
	RowOffset int `json:"row_offset"`

	// Serialization is the markdown rendering preserving exact cell values
	// and column order. Used for structured queries.
	Serialization string `json:"serialization"`
	// Caption is the natural-language description of the chunk's content.
	// Used for semantic queries.
	Caption string `json:"caption"`
}

// AudioContent is the payload of an audio chunk: merged transcript segments
// plus enrichment.
type AudioContent struct {
	Text     string   `json:"text"`
	StartS   float64  `json:"start_time_s"`
	EndS     float64  `json:"end_time_s"`
	Topic    string   `json:"topic,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// Grid is a rectangular table handed to the table processor: one header row
// plus data rows. Cell values are strings; numeric cells keep their original
// textual form so exact values survive serialization.
type Grid struct {
	Headers []string
	Rows    [][]string

	// SheetName and Page locate the grid in its source document.
	SheetName string
	Page      int
}

// Segment is one timestamped transcript segment from the transcription
// collaborator.
type Segment struct {
	Text    string  `json:"text"`
	StartS  float64 `json:"start_time_s"`
	EndS    float64 `json:"end_time_s"`
	Speaker string  `json:"speaker,omitempty"`
}

// Enrichment is the result of the external text-analysis collaborator for an
// audio chunk.
type Enrichment struct {
	Topic    string   `json:"topic"`
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
}

// --- Query-side types ---

// QueryIntent is the transient classification of a query's retrieval needs.
// Intents are not mutually exclusive: a structured query about a table is
// still partly semantic.
type QueryIntent struct {
	Semantic    bool `json:"is_semantic"`
	Structured  bool `json:"is_structured"`
	Temporal    bool `json:"is_temporal"`
	Comparison  bool `json:"comparison_detected"`
	Range       bool `json:"range_detected"`
	Aggregation bool `json:"aggregation_detected"`
}

// Weights maps each modality to its retrieval weight in [0,1].
// A freshly routed Weights sums to 1.
type Weights map[Modality]float64

// MarshalJSON renders weights with string keys for logging.
func (w Weights) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(w))
	for m, v := range w {
		out[string(m)] = v
	}
	return json.Marshal(out)
}

// Route is the query router's output: per-modality weights plus the intent
// record and the embedding kind to prioritize for table chunks.
type Route struct {
	Weights   Weights       `json:"weights"`
	Intent    QueryIntent   `json:"intent"`
	TableKind EmbeddingKind `json:"table_kind"`
}

// ScoredChunk pairs a chunk with its raw cosine similarity from a store
// search, before fusion.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
	// Kind is the embedding kind whose vector matched.
	Kind EmbeddingKind
}

// EvidenceItem is one fused retrieval result handed to the generator.
type EvidenceItem struct {
	ChunkID    string        `json:"chunk_id"`
	DocumentID string        `json:"document_id"`
	Modality   Modality      `json:"modality"`
	Score      float64       `json:"score"`
	RawScore   float64       `json:"raw_score"`
	Kind       EmbeddingKind `json:"embedding_kind_matched"`
	Snippet    string        `json:"snippet"`

	// Chunk carries the full retrieved chunk so the generator can choose
	// between table representations and read audio timestamps.
	Chunk Chunk `json:"-"`
}

// Citation maps a claim in the answer back to its supporting chunk.
// Audio citations carry the chunk's time range so callers can seek.
type Citation struct {
	ChunkID  string   `json:"chunk_id"`
	Modality Modality `json:"modality"`
	StartS   float64  `json:"start_time_s,omitempty"`
	EndS     float64  `json:"end_time_s,omitempty"`
}

// Answer is the generator's output.
type Answer struct {
	Text      string     `json:"answer_text"`
	Citations []Citation `json:"citations"`
}

// --- Ingestion reporting ---

// SkipReason records why one chunk was dropped during ingestion.
type SkipReason struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// IngestReport summarizes a per-document ingestion: how many chunks were
// stored and which were skipped. A document with some skipped chunks is
// partial, not failed.
type IngestReport struct {
	DocumentID string       `json:"document_id"`
	Stored     int          `json:"stored"`
	Skipped    []SkipReason `json:"skipped,omitempty"`
}

// Partial reports whether some chunks were skipped but others stored.
func (r IngestReport) Partial() bool { return r.Stored > 0 && len(r.Skipped) > 0 }

// --- LLM protocol types ---

type ChatMessage struct {
	Role    string      `json:"role"` // "system", "user", "assistant"
	Content string      `json:"content"`
	Images  []ImageData `json:"images,omitempty"`
}

type ImageData struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// SystemMessage builds a system-role chat message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage builds a user-role chat message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}
