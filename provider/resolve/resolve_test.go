package resolve

import (
	"testing"
)

func TestProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "gemini", wantName: "gemini"},
		{provider: "openai", wantName: "openai"},
		{provider: "groq", wantName: "groq"},
		{provider: "deepseek", wantName: "deepseek"},
		{provider: "ollama", wantName: "ollama"},
		{provider: "nonexistent", wantErr: true},
		{provider: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := Provider(Config{Provider: tt.provider, APIKey: "k", Model: "m"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestEmbeddingProvider(t *testing.T) {
	p, err := EmbeddingProvider(EmbeddingConfig{
		Provider: "gemini", APIKey: "k", Model: "gemini-embedding-001", Dimensions: 1536,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Dimensions() != 1536 {
		t.Errorf("Dimensions() = %d, want 1536", p.Dimensions())
	}

	if _, err := EmbeddingProvider(EmbeddingConfig{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown embedding provider")
	}

	// OpenAI-compatible providers carry their configured name.
	p, err = EmbeddingProvider(EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", p.Name())
	}
}

func TestDefaultBaseURL(t *testing.T) {
	if got := defaultBaseURL("groq"); got != "https://api.groq.com/openai/v1" {
		t.Errorf("groq base url = %q", got)
	}
	if got := defaultBaseURL("unknown"); got != "" {
		t.Errorf("unknown base url = %q, want empty", got)
	}
}
