package fathom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// LLM-backed implementations of the enrichment collaborators. Both are thin
// prompt wrappers around a chat Provider; callers that have dedicated
// captioning or NER services can implement the interfaces directly instead.

// --- Table captioning ---

// LLMCaptioner implements TableCaptioner with a chat LLM.
type LLMCaptioner struct {
	provider Provider
}

var _ TableCaptioner = (*LLMCaptioner)(nil)

// NewLLMCaptioner creates a TableCaptioner backed by the given provider.
func NewLLMCaptioner(provider Provider) *LLMCaptioner {
	return &LLMCaptioner{provider: provider}
}

const captionSystemPrompt = `You describe tables for a search index. Given column headers and sample rows, write 2-3 sentences covering: what each column represents, notable patterns, and approximate value ranges. Plain prose, no markdown, no preamble.`

// CaptionTable asks the LLM for a semantic description of the grid. Only the
// first rows up to a small sample are sent; the caption describes meaning,
// not exact values.
func (c *LLMCaptioner) CaptionTable(ctx context.Context, headers []string, rows [][]string) (string, error) {
	const sampleRows = 20
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(headers, ", "))
	n := len(rows)
	if n > sampleRows {
		n = sampleRows
	}
	for _, row := range rows[:n] {
		fmt.Fprintf(&b, "%s\n", strings.Join(row, " | "))
	}
	if len(rows) > sampleRows {
		fmt.Fprintf(&b, "(%d more rows)\n", len(rows)-sampleRows)
	}

	resp, err := c.provider.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(captionSystemPrompt),
			UserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("caption table: %w", err)
	}
	caption := strings.TrimSpace(resp.Content)
	if caption == "" {
		return "", &ErrProvider{Provider: c.provider.Name(), Message: "empty table caption"}
	}
	return caption, nil
}

// --- Audio enrichment ---

// LLMEnricher implements AudioEnricher with a chat LLM returning JSON.
type LLMEnricher struct {
	provider Provider
}

var _ AudioEnricher = (*LLMEnricher)(nil)

// NewLLMEnricher creates an AudioEnricher backed by the given provider.
func NewLLMEnricher(provider Provider) *LLMEnricher {
	return &LLMEnricher{provider: provider}
}

const enrichSystemPrompt = `You annotate transcript excerpts for a search index. Respond with ONLY a JSON object:
{"topic":"<2-5 word label>","summary":"<one executive-style sentence>","entities":["<people, organizations, dates mentioned>"]}
No extra text, no code fences.`

// EnrichAudio derives topic, summary, and named entities from transcript
// text. A malformed LLM response degrades to an empty enrichment rather than
// failing the chunk: the transcript text alone still embeds fine.
func (e *LLMEnricher) EnrichAudio(ctx context.Context, text string) (Enrichment, error) {
	resp, err := e.provider.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(enrichSystemPrompt),
			UserMessage(text),
		},
	})
	if err != nil {
		return Enrichment{}, fmt.Errorf("enrich audio: %w", err)
	}

	var enr Enrichment
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &enr); err != nil {
		return Enrichment{}, nil
	}
	return enr, nil
}

// --- Image captioning ---

// LLMImageCaptioner implements ImageCaptioner with a multimodal chat LLM.
type LLMImageCaptioner struct {
	provider Provider
}

var _ ImageCaptioner = (*LLMImageCaptioner)(nil)

// NewLLMImageCaptioner creates an ImageCaptioner backed by the given
// provider. The provider's model must accept image input.
func NewLLMImageCaptioner(provider Provider) *LLMImageCaptioner {
	return &LLMImageCaptioner{provider: provider}
}

const imageCaptionPrompt = `Describe this image in two or three sentences. Name the visible objects, any text in the image, and what the image shows overall. Answer with the description only.`

// CaptionImage asks the model to describe the image. The description becomes
// the retrieval-facing content of an image chunk.
func (c *LLMImageCaptioner) CaptionImage(ctx context.Context, img ImageData) (string, error) {
	resp, err := c.provider.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: imageCaptionPrompt, Images: []ImageData{img}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("caption image: %w", err)
	}
	caption := strings.TrimSpace(resp.Content)
	if caption == "" {
		return "", &ErrProvider{Provider: c.provider.Name(), Message: "empty image caption"}
	}
	return caption, nil
}

// extractJSON finds the first JSON object in a string, stripping markdown
// code fences when present.
func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
