package fathom

import (
	"context"
	"sync"
	"time"
)

// rateLimitEmbedding wraps an EmbeddingProvider with proactive rate
// limiting. Calls block until the rate budget allows them to proceed.
// Embedding calls dominate ingestion latency and provider rate limits are
// the usual bottleneck, so limiting proactively beats burning retry budget.
type rateLimitEmbedding struct {
	inner EmbeddingProvider
	mu    sync.Mutex

	// Sliding window of request timestamps.
	rpm    int
	window []time.Time
}

// RateLimitOption configures a rate limit wrapper.
type RateLimitOption func(*rateLimitEmbedding)

// RPM sets the maximum embedding requests per minute.
func RPM(n int) RateLimitOption {
	return func(r *rateLimitEmbedding) { r.rpm = n }
}

// WithEmbedRateLimit wraps p with proactive request rate limiting.
// Compose with the retry wrapper:
//
//	emb = fathom.WithEmbedRateLimit(fathom.WithEmbedRetry(provider), fathom.RPM(60))
func WithEmbedRateLimit(p EmbeddingProvider, opts ...RateLimitOption) EmbeddingProvider {
	r := &rateLimitEmbedding{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *rateLimitEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForBudget(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// waitForBudget blocks until a request slot is available in the sliding
// one-minute window, or ctx is done.
func (r *rateLimitEmbedding) waitForBudget(ctx context.Context) error {
	if r.rpm <= 0 {
		return nil
	}
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		kept := r.window[:0]
		for _, t := range r.window {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.window = kept

		if len(r.window) < r.rpm {
			r.window = append(r.window, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.window[0].Sub(cutoff)
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
