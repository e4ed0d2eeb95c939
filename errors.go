package fathom

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrEmptyQuery is returned for a blank query string. This is the only
// query-side condition surfaced as an error; everything else degrades to the
// insufficient-evidence answer.
var ErrEmptyQuery = errors.New("fathom: empty query")

// ErrProvider reports a failure from an LLM or embedding backend.
type ErrProvider struct {
	Provider string
	Message  string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from a provider API.
// Status 429 and 503 are considered transient and retryable.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrMalformedInput reports bad input shape (grid, segment) detected during
// processing. Malformed input skips the affected chunk; it never aborts
// sibling chunks or other documents.
type ErrMalformedInput struct {
	Kind   string // "table", "audio", "image", "text"
	Reason string
}

func (e *ErrMalformedInput) Error() string {
	return fmt.Sprintf("malformed %s input: %s", e.Kind, e.Reason)
}

// ErrStoreConsistency reports an atomicity violation observed in the vector
// store, such as a partially visible document. It is fatal for the affected
// document's ingestion and must be surfaced, never swallowed.
type ErrStoreConsistency struct {
	DocumentID string
	Reason     string
}

func (e *ErrStoreConsistency) Error() string {
	return fmt.Sprintf("store consistency violation for document %s: %s", e.DocumentID, e.Reason)
}

// IsTransient reports whether err is a retryable provider error (HTTP 429 or
// 503). Permanent failures (malformed input, 4xx) are chunk-level skips.
func IsTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// ParseRetryAfter parses an HTTP Retry-After header value: either a number
// of seconds or an HTTP-date. Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
