package fathom

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyEmbedding fails with err for the first failures calls, then succeeds.
type flakyEmbedding struct {
	failures int
	err      error
	calls    int
}

func (f *flakyEmbedding) Name() string    { return "flaky" }
func (f *flakyEmbedding) Dimensions() int { return 1 }
func (f *flakyEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return [][]float32{{1}}, nil
}

func TestRetryTransientThenSuccess(t *testing.T) {
	inner := &flakyEmbedding{failures: 2, err: &ErrHTTP{Status: 429, Body: "slow down"}}
	p := WithEmbedRetry(inner, RetryMaxAttempts(3), RetryBaseDelay(time.Millisecond))

	vecs, err := p.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 1 {
		t.Fatalf("vecs = %v", vecs)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyEmbedding{failures: 10, err: &ErrHTTP{Status: 503, Body: "unavailable"}}
	p := WithEmbedRetry(inner, RetryMaxAttempts(2), RetryBaseDelay(time.Millisecond))

	_, err := p.Embed(context.Background(), []string{"x"})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 503 {
		t.Errorf("err = %v, want the last ErrHTTP 503", err)
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestRetryPermanentNotRetried(t *testing.T) {
	inner := &flakyEmbedding{failures: 10, err: &ErrHTTP{Status: 400, Body: "bad request"}}
	p := WithEmbedRetry(inner, RetryMaxAttempts(3), RetryBaseDelay(time.Millisecond))

	if _, err := p.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (400 is permanent)", inner.calls)
	}
}

func TestRetryRespectsContextCancel(t *testing.T) {
	inner := &flakyEmbedding{failures: 10, err: &ErrHTTP{Status: 429}}
	p := WithEmbedRetry(inner, RetryMaxAttempts(5), RetryBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Embed(ctx, []string{"x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryDelayRetryAfterFloor(t *testing.T) {
	err := &ErrHTTP{Status: 429, RetryAfter: 5 * time.Second}
	if d := retryDelay(time.Millisecond, 0, err); d != 5*time.Second {
		t.Errorf("delay = %v, want the server's Retry-After", d)
	}
	// Without Retry-After the delay stays near the backoff.
	if d := retryDelay(time.Millisecond, 0, &ErrHTTP{Status: 429}); d < time.Millisecond || d > 2*time.Millisecond {
		t.Errorf("delay = %v, want ~1ms backoff with jitter", d)
	}
}

func TestChatRetry(t *testing.T) {
	calls := 0
	inner := &funcProvider{fn: func(ctx context.Context, req ChatRequest) (ChatResponse, error) {
		calls++
		if calls == 1 {
			return ChatResponse{}, &ErrHTTP{Status: 503}
		}
		return ChatResponse{Content: "ok"}, nil
	}}
	p := WithChatRetry(inner, RetryBaseDelay(time.Millisecond))
	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" || calls != 2 {
		t.Errorf("content = %q calls = %d", resp.Content, calls)
	}
}

func TestRetryDelayTinyBaseDelay(t *testing.T) {
	// A sub-nanosecond jitter window must not panic the delay computation.
	for _, base := range []time.Duration{0, 1} {
		for i := 0; i < 3; i++ {
			if d := retryDelay(base, i, nil); d < 0 {
				t.Errorf("retryDelay(%d, %d) = %v, want >= 0", base, i, d)
			}
		}
	}
}

// funcProvider adapts a function to the Provider interface.
type funcProvider struct {
	fn func(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

func (p *funcProvider) Name() string { return "func" }
func (p *funcProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return p.fn(ctx, req)
}
