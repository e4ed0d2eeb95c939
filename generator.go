package fathom

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// InsufficientEvidenceAnswer is the fixed response returned when no evidence
// supports the query. Returning it instead of inventing content is a hard
// requirement, not best-effort.
const InsufficientEvidenceAnswer = "I don't have enough information in the ingested documents to answer that."

// Generator synthesizes a final answer from ranked multimodal evidence.
type Generator interface {
	Generate(ctx context.Context, query string, evidence []EvidenceItem, route Route) (Answer, error)
}

// LLMGenerator produces answers with a chat LLM, grounding every claim in
// the supplied evidence and emitting per-item citations.
type LLMGenerator struct {
	provider Provider
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator creates a Generator backed by the given chat provider.
func NewLLMGenerator(provider Provider) *LLMGenerator {
	return &LLMGenerator{provider: provider}
}

const generatorSystemPrompt = `You answer questions using ONLY the numbered evidence blocks provided.

Rules:
- Every factual claim must come from an evidence block. Mark each claim with the block number in square brackets, e.g. [2].
- Table evidence is given either as an exact markdown table or as a description. When an exact table is given, use the exact cell values; never round or estimate them.
- Audio evidence includes a time range; mention it when the question concerns timing.
- If the evidence does not answer the question, reply with exactly: ` + InsufficientEvidenceAnswer

// Generate builds the evidence prompt, calls the LLM, and maps citation
// markers back to chunk ids. With empty evidence it returns the fixed
// insufficient-information answer without calling the LLM.
func (g *LLMGenerator) Generate(ctx context.Context, query string, evidence []EvidenceItem, route Route) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, ErrEmptyQuery
	}
	if len(evidence) == 0 {
		return Answer{Text: InsufficientEvidenceAnswer}, nil
	}

	prompt := buildEvidencePrompt(query, evidence, route)
	resp, err := g.provider.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(generatorSystemPrompt),
			UserMessage(prompt),
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Answer{Text: InsufficientEvidenceAnswer}, nil
	}

	return Answer{Text: text, Citations: extractCitations(text, evidence)}, nil
}

// buildEvidencePrompt renders numbered evidence blocks. Table chunks are
// presented through their serialization when the intent is structured or
// aggregating — numeric precision is preserved exactly when the query
// demands it — and through their caption otherwise. Audio chunks always
// carry their time range.
func buildEvidencePrompt(query string, evidence []EvidenceItem, route Route) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nEvidence:\n", query)
	for i, ev := range evidence {
		fmt.Fprintf(&b, "\n[%d] (%s)\n", i+1, ev.Modality)
		b.WriteString(evidenceBody(ev, route))
		b.WriteString("\n")
	}
	return b.String()
}

func evidenceBody(ev EvidenceItem, route Route) string {
	switch ev.Modality {
	case ModalityTable:
		if ev.Chunk.Table == nil {
			return ev.Snippet
		}
		if route.Intent.Structured || route.Intent.Aggregation {
			return ev.Chunk.Table.Serialization
		}
		if ev.Chunk.Table.Caption != "" {
			return ev.Chunk.Table.Caption
		}
		return ev.Chunk.Table.Serialization
	case ModalityAudio:
		if ev.Chunk.Audio == nil {
			return ev.Snippet
		}
		a := ev.Chunk.Audio
		return fmt.Sprintf("Transcript %s - %s: %s",
			FormatTimestamp(a.StartS), FormatTimestamp(a.EndS), a.Text)
	default:
		return ev.Chunk.Content
	}
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations maps [n] markers in the answer back to evidence chunks.
// When the model emitted no markers, every evidence item is cited so the
// caller can still trace the answer. Audio citations carry the chunk's time
// range for seeking.
func extractCitations(text string, evidence []EvidenceItem) []Citation {
	cited := make([]bool, len(evidence))
	any := false
	for _, m := range citationMarkerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(evidence) {
			continue
		}
		cited[n-1] = true
		any = true
	}
	if !any {
		for i := range cited {
			cited[i] = true
		}
	}

	var citations []Citation
	for i, ev := range evidence {
		if !cited[i] {
			continue
		}
		c := Citation{ChunkID: ev.ChunkID, Modality: ev.Modality}
		if ev.Modality == ModalityAudio && ev.Chunk.Audio != nil {
			c.StartS = ev.Chunk.Audio.StartS
			c.EndS = ev.Chunk.Audio.EndS
		}
		citations = append(citations, c)
	}
	return citations
}
