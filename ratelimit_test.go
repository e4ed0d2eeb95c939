package fathom

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimitWithinBudget(t *testing.T) {
	inner := &stubEmbedding{vec: []float32{1}}
	p := WithEmbedRateLimit(inner, RPM(3))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("calls within budget blocked for %v", elapsed)
	}
	if len(inner.calls) != 3 {
		t.Errorf("inner calls = %d, want 3", len(inner.calls))
	}
}

func TestRateLimitBlocksOverBudget(t *testing.T) {
	inner := &stubEmbedding{vec: []float32{1}}
	p := WithEmbedRateLimit(inner, RPM(1))

	if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatal(err)
	}

	// The second call must wait for the window; cancel instead of waiting
	// a minute.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Embed(ctx, []string{"y"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if len(inner.calls) != 1 {
		t.Errorf("inner calls = %d, want 1 (second call blocked)", len(inner.calls))
	}
}

func TestRateLimitDisabled(t *testing.T) {
	inner := &stubEmbedding{vec: []float32{1}}
	p := WithEmbedRateLimit(inner) // no RPM: passthrough

	for i := 0; i < 10; i++ {
		if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(inner.calls) != 10 {
		t.Errorf("inner calls = %d, want 10", len(inner.calls))
	}
}

func TestRateLimitPreservesIdentity(t *testing.T) {
	inner := &stubEmbedding{vec: []float32{1, 2, 3}}
	p := WithEmbedRateLimit(inner, RPM(60))
	if p.Name() != inner.Name() {
		t.Errorf("Name = %q, want %q", p.Name(), inner.Name())
	}
	if p.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", p.Dimensions())
	}
}
