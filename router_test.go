package fathom

import (
	"math"
	"testing"
)

func TestRouteQueryIntent(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  QueryIntent
	}{
		{
			name:  "plain semantic",
			query: "what does the report say about onboarding",
			want:  QueryIntent{Semantic: true},
		},
		{
			name:  "comparison",
			query: "which products cost more than 50 dollars",
			want:  QueryIntent{Semantic: true, Structured: true, Comparison: true},
		},
		{
			name:  "greater than",
			query: "rows with price greater than 100",
			want:  QueryIntent{Semantic: true, Structured: true, Comparison: true},
		},
		{
			name:  "numeric range",
			query: "orders between $10 and $20",
			want:  QueryIntent{Semantic: true, Structured: true, Range: true},
		},
		{
			name:  "aggregation",
			query: "what is the average revenue per region",
			want:  QueryIntent{Semantic: true, Aggregation: true},
		},
		{
			name:  "how many",
			query: "how many customers churned",
			want:  QueryIntent{Semantic: true, Aggregation: true},
		},
		{
			name:  "temporal explicit",
			query: "what was said at 12 minutes",
			want:  QueryIntent{Semantic: true, Temporal: true},
		},
		{
			name:  "temporal timestamp",
			query: "summarize the discussion around 12:30",
			want:  QueryIntent{Semantic: true, Temporal: true},
		},
		{
			name:  "temporal relative",
			query: "what happens at the beginning of the recording",
			want:  QueryIntent{Semantic: true, Temporal: true},
		},
		{
			name:  "mixed structured and temporal",
			query: "how many items over 100 were mentioned early in the call",
			want: QueryIntent{
				Semantic: true, Structured: true, Comparison: true,
				Aggregation: true, Temporal: true,
			},
		},
		{
			name:  "case insensitive",
			query: "AVERAGE price ABOVE 10",
			want:  QueryIntent{Semantic: true, Structured: true, Comparison: true, Aggregation: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RouteQuery(tt.query).Intent
			if got != tt.want {
				t.Errorf("RouteQuery(%q).Intent = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestRouteQueryTableKind(t *testing.T) {
	tests := []struct {
		query string
		want  EmbeddingKind
	}{
		{"what is this table about", KindCaption},
		{"products with price greater than 100", KindSerialization},
		{"total sales in Q3", KindSerialization},
		{"items between 5 and 10", KindSerialization},
	}
	for _, tt := range tests {
		if got := RouteQuery(tt.query).TableKind; got != tt.want {
			t.Errorf("RouteQuery(%q).TableKind = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestRouteQueryWeights(t *testing.T) {
	// Plain query: uniform weights.
	route := RouteQuery("tell me about the architecture")
	for _, m := range AllModalities {
		if got := route.Weights[m]; math.Abs(got-0.25) > 1e-9 {
			t.Errorf("weight[%s] = %v, want 0.25", m, got)
		}
	}

	// Structured query boosts table above the others.
	route = RouteQuery("price greater than 100")
	if route.Weights[ModalityTable] <= route.Weights[ModalityText] {
		t.Errorf("table weight %v not boosted above text weight %v",
			route.Weights[ModalityTable], route.Weights[ModalityText])
	}
	// Boost of 2.0 on top of base 1 against total 6: 3/6 vs 1/6.
	if got := route.Weights[ModalityTable]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("boosted table weight = %v, want 0.5", got)
	}

	// Temporal query boosts audio.
	route = RouteQuery("what did they say at 5 minutes in")
	if route.Weights[ModalityAudio] <= route.Weights[ModalityImage] {
		t.Errorf("audio weight %v not boosted above image weight %v",
			route.Weights[ModalityAudio], route.Weights[ModalityImage])
	}
}

func TestRouteQueryWeightsNormalized(t *testing.T) {
	queries := []string{
		"hello",
		"average price over 100 at the end of the meeting",
		"between 1 and 2",
	}
	for _, q := range queries {
		var sum float64
		for _, w := range RouteQuery(q).Weights {
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("weights for %q sum to %v, want 1", q, sum)
		}
	}
}
