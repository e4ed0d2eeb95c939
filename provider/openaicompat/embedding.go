package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	fathom "github.com/fathomlabs/fathom"
)

// Embedding implements fathom.EmbeddingProvider for any OpenAI-compatible
// embeddings API. Texts are embedded in a single batch request.
type Embedding struct {
	provider *Provider
	model    string
	dims     int
}

// NewEmbedding creates an OpenAI-compatible embedding provider.
// dims is the dimensionality reported by Dimensions; it is also sent as the
// requested output dimensionality when greater than zero.
func NewEmbedding(apiKey, model, baseURL string, dims int, opts ...ProviderOption) *Embedding {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return &Embedding{provider: p, model: model, dims: dims}
}

// Name returns the provider name (default "openai", configurable via WithName).
func (e *Embedding) Name() string { return e.provider.name }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embedBody struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds all texts in one request and returns vectors in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := embedBody{Model: e.model, Input: texts}
	if e.dims > 0 {
		body.Dimensions = e.dims
	}

	respBody, err := e.provider.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &fathom.ErrProvider{Provider: e.provider.name, Message: fmt.Sprintf("decode embeddings: %v", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &fathom.ErrProvider{
			Provider: e.provider.name,
			Message:  fmt.Sprintf("embeddings count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Data)),
		}
	}

	// The API may return vectors out of order; index restores input order.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

var _ fathom.EmbeddingProvider = (*Embedding)(nil)
