package ingest

import (
	"errors"
	"testing"

	fathom "github.com/fathomlabs/fathom"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world ", "hello world"},
		{"line\none\n\nline two", "line one line two"},
		{"", ""},
		{"\t \n", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessText(t *testing.T) {
	chunks := ProcessText("d1", []string{"first  block", "", "  ", "second block"})
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (blanks dropped)", len(chunks))
	}
	if chunks[0].Content != "first block" {
		t.Errorf("content = %q", chunks[0].Content)
	}
	if chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Error("indexes not sequential after dropping blanks")
	}
	for _, c := range chunks {
		if c.Modality != fathom.ModalityText || c.DocumentID != "d1" || c.ID == "" {
			t.Errorf("chunk identity wrong: %+v", c)
		}
	}
}

func TestProcessImage(t *testing.T) {
	c, err := ProcessImage("d1", "figures/chart.png", " a  bar chart ", 3)
	if err != nil {
		t.Fatal(err)
	}
	if c.Modality != fathom.ModalityImage || c.ImageRef != "figures/chart.png" {
		t.Errorf("chunk = %+v", c)
	}
	if c.Content != "a bar chart" {
		t.Errorf("content = %q", c.Content)
	}
	if c.ChunkIndex != 3 {
		t.Errorf("index = %d", c.ChunkIndex)
	}

	var malformed *fathom.ErrMalformedInput
	if _, err := ProcessImage("d1", "", "caption", 0); !errors.As(err, &malformed) {
		t.Errorf("empty ref: err = %v", err)
	}
}
