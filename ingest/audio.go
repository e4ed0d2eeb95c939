package ingest

import (
	"context"
	"fmt"
	"strings"

	fathom "github.com/fathomlabs/fathom"
)

// Default chunk duration window for merged transcript segments.
const (
	DefaultMinWindowS = 30.0
	DefaultMaxWindowS = 60.0
)

// AudioProcessor merges timestamped transcript segments into coherent
// chunks targeting a duration window, enriched with topic, summary, and
// named entities.
type AudioProcessor struct {
	enricher fathom.AudioEnricher

	minWindowS float64
	maxWindowS float64
}

// AudioOption configures an AudioProcessor.
type AudioOption func(*AudioProcessor)

// WithDurationWindow sets the target chunk duration window in seconds.
// Defaults to 30–60s.
func WithDurationWindow(minS, maxS float64) AudioOption {
	return func(p *AudioProcessor) {
		p.minWindowS = minS
		p.maxWindowS = maxS
	}
}

// NewAudioProcessor creates an audio processor. enricher may be nil, in
// which case chunks carry only raw transcript text.
func NewAudioProcessor(enricher fathom.AudioEnricher, opts ...AudioOption) *AudioProcessor {
	p := &AudioProcessor{
		enricher:   enricher,
		minWindowS: DefaultMinWindowS,
		maxWindowS: DefaultMaxWindowS,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process validates segment ordering, merges segments into duration-bounded
// chunks without ever splitting inside a raw segment, and enriches each
// chunk. Concatenating the resulting chunk texts in order reproduces the
// original transcript up to whitespace normalization.
//
// Enrichment failures degrade to un-enriched chunks: the raw transcript text
// still embeds and retrieves.
func (p *AudioProcessor) Process(ctx context.Context, documentID string, segments []fathom.Segment) ([]fathom.Chunk, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	if err := validateSegments(segments); err != nil {
		return nil, err
	}

	var chunks []fathom.Chunk
	for idx, win := range mergeSegments(segments, p.minWindowS, p.maxWindowS) {
		text := joinSegmentText(win)
		audio := &fathom.AudioContent{
			Text:   text,
			StartS: win[0].StartS,
			EndS:   win[len(win)-1].EndS,
		}
		if p.enricher != nil {
			if enr, err := p.enricher.EnrichAudio(ctx, text); err == nil {
				audio.Topic = enr.Topic
				audio.Summary = enr.Summary
				audio.Entities = enr.Entities
			}
		}

		md := map[string]string{
			"start_time_s": fmt.Sprintf("%.3f", audio.StartS),
			"end_time_s":   fmt.Sprintf("%.3f", audio.EndS),
		}
		if audio.Topic != "" {
			md["topics"] = audio.Topic
		}
		if len(audio.Entities) > 0 {
			md["entities"] = strings.Join(audio.Entities, ", ")
		}

		chunks = append(chunks, fathom.Chunk{
			ID:         fathom.NewID(),
			DocumentID: documentID,
			Modality:   fathom.ModalityAudio,
			ChunkIndex: idx,
			Content:    text,
			Audio:      audio,
			Metadata:   md,
		})
	}
	return chunks, nil
}

// validateSegments checks per-segment time sanity and global ordering:
// start <= end everywhere, and segments non-overlapping and monotonically
// ordered (a shared boundary timestamp is allowed).
func validateSegments(segments []fathom.Segment) error {
	for i, s := range segments {
		if s.StartS > s.EndS {
			return &fathom.ErrMalformedInput{
				Kind:   "audio",
				Reason: fmt.Sprintf("segment %d has start %.3f after end %.3f", i, s.StartS, s.EndS),
			}
		}
		if i > 0 && s.StartS < segments[i-1].EndS {
			return &fathom.ErrMalformedInput{
				Kind:   "audio",
				Reason: fmt.Sprintf("segment %d overlaps previous segment", i),
			}
		}
	}
	return nil
}

// mergeSegments groups consecutive segments into windows. A window closes
// once it reaches minS, or earlier when adding the next segment would push
// it past maxS. A single raw segment longer than maxS becomes its own
// window — raw segments are never split.
func mergeSegments(segments []fathom.Segment, minS, maxS float64) [][]fathom.Segment {
	var (
		windows [][]fathom.Segment
		current []fathom.Segment
	)
	duration := func(win []fathom.Segment) float64 {
		if len(win) == 0 {
			return 0
		}
		return win[len(win)-1].EndS - win[0].StartS
	}

	for _, seg := range segments {
		if len(current) > 0 {
			extended := seg.EndS - current[0].StartS
			if duration(current) >= minS || extended > maxS {
				windows = append(windows, current)
				current = nil
			}
		}
		current = append(current, seg)
	}
	if len(current) > 0 {
		windows = append(windows, current)
	}
	return windows
}

func joinSegmentText(win []fathom.Segment) string {
	parts := make([]string, 0, len(win))
	for _, s := range win {
		t := NormalizeText(s.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
