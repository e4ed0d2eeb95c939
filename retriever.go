package fathom

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Retriever fuses per-modality vector searches into one ranked evidence list.
// Scores are scaled by router-derived modality weights rather than filtered,
// so every modality with a positive weight contributes candidates to the
// fused ranking — no modality is silently excluded even when it scores lower
// globally.
type Retriever struct {
	store     VectorStore
	embedding EmbeddingProvider
	cfg       retrieverConfig
}

type retrieverConfig struct {
	kPerModality int
	totalLimit   int
	snippetLen   int
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*retrieverConfig)

// WithKPerModality sets how many candidates each modality search requests.
// Default is 5.
func WithKPerModality(k int) RetrieverOption {
	return func(c *retrieverConfig) { c.kPerModality = k }
}

// WithTotalLimit sets the length of the fused evidence list. Default is 10.
func WithTotalLimit(n int) RetrieverOption {
	return func(c *retrieverConfig) { c.totalLimit = n }
}

// NewRetriever creates a Retriever over the given store and embedding provider.
func NewRetriever(store VectorStore, embedding EmbeddingProvider, opts ...RetrieverOption) *Retriever {
	cfg := retrieverConfig{kPerModality: 5, totalLimit: 10, snippetLen: 200}
	for _, o := range opts {
		o(&cfg)
	}
	return &Retriever{store: store, embedding: embedding, cfg: cfg}
}

// Retrieve routes the query, runs per-modality searches in parallel, and
// merges candidates into one ranked evidence list. The returned Route lets
// the caller present table evidence in the representation the intent asks for.
//
// Retrieval is read-only: cancelling ctx mid-flight has no side effects.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]EvidenceItem, Route, error) {
	route := RouteQuery(query)

	// The query is embedded once; the same vector is compared against
	// whichever embedding kind the router prioritized per modality.
	embs, err := r.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, route, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, route, &ErrProvider{Provider: r.embedding.Name(), Message: "no query embedding returned"}
	}
	queryVec := embs[0]

	var (
		mu         sync.Mutex
		candidates []EvidenceItem
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range AllModalities {
		weight := route.Weights[m]
		if weight <= 0 {
			continue
		}
		g.Go(func() error {
			filter := SearchFilter{Modalities: []Modality{m}}
			if m == ModalityTable {
				filter.TableKind = route.TableKind
			}
			scored, err := r.store.Search(gctx, queryVec, filter, r.cfg.kPerModality)
			if err != nil {
				return fmt.Errorf("search %s: %w", m, err)
			}
			items := make([]EvidenceItem, 0, len(scored))
			for _, sc := range scored {
				raw := scaleScore(sc.Score)
				items = append(items, EvidenceItem{
					ChunkID:    sc.Chunk.ID,
					DocumentID: sc.Chunk.DocumentID,
					Modality:   m,
					Score:      raw * weight,
					RawScore:   raw,
					Kind:       sc.Kind,
					Snippet:    snippet(sc.Chunk.Content, r.cfg.snippetLen),
					Chunk:      sc.Chunk,
				})
			}
			mu.Lock()
			candidates = append(candidates, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, route, err
	}

	merged := fuse(candidates, r.cfg.totalLimit)
	return merged, route, nil
}

// fuse deduplicates by chunk id (keeping the higher-scoring occurrence),
// sorts by fused score descending with deterministic tie-breaks, and
// truncates to limit.
func fuse(candidates []EvidenceItem, limit int) []EvidenceItem {
	best := make(map[string]EvidenceItem, len(candidates))
	for _, it := range candidates {
		prev, ok := best[it.ChunkID]
		if !ok || it.Score > prev.Score {
			best[it.ChunkID] = it
		}
	}
	merged := make([]EvidenceItem, 0, len(best))
	for _, it := range best {
		merged = append(merged, it)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].RawScore != merged[j].RawScore {
			return merged[i].RawScore > merged[j].RawScore
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// scaleScore clamps a cosine similarity into [0,1]. Embeddings from the
// supported providers are effectively non-negative in similarity, so
// clamping (rather than shifting) preserves score magnitudes.
func scaleScore(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

// snippet returns up to n runes of s, cut at a rune boundary.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
