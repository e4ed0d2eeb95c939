package fathom

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &ErrHTTP{Status: 429}, true},
		{"503", &ErrHTTP{Status: 503}, true},
		{"400", &ErrHTTP{Status: 400}, false},
		{"500", &ErrHTTP{Status: 500}, false},
		{"wrapped 429", fmt.Errorf("embed: %w", &ErrHTTP{Status: 429}), true},
		{"provider error", &ErrProvider{Provider: "x", Message: "y"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	// HTTP-date form: a date a minute out parses to a positive duration.
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	got := ParseRetryAfter(future)
	if got <= 0 || got > time.Minute {
		t.Errorf("ParseRetryAfter(%q) = %v, want (0, 1m]", future, got)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ErrProvider{Provider: "gemini", Message: "empty response"}, "gemini: empty response"},
		{&ErrHTTP{Status: 429, Body: "rate limited"}, "http 429: rate limited"},
		{&ErrMalformedInput{Kind: "table", Reason: "zero columns"}, "malformed table input: zero columns"},
		{&ErrStoreConsistency{DocumentID: "d1", Reason: "partial visibility"}, "store consistency violation for document d1: partial visibility"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
