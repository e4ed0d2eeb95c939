package ingest

import (
	fathom "github.com/fathomlabs/fathom"
)

// Text and image content passes through without table/audio-style
// processing: one chunk per text block, one chunk per image.

// ProcessText turns pre-extracted prose blocks into text chunks. Empty
// blocks are dropped.
func ProcessText(documentID string, blocks []string) []fathom.Chunk {
	var chunks []fathom.Chunk
	for _, block := range blocks {
		text := NormalizeText(block)
		if text == "" {
			continue
		}
		chunks = append(chunks, fathom.Chunk{
			ID:         fathom.NewID(),
			DocumentID: documentID,
			Modality:   fathom.ModalityText,
			ChunkIndex: len(chunks),
			Content:    text,
		})
	}
	return chunks
}

// ProcessImage builds a single image chunk. caption becomes the chunk's
// retrieval-facing content; ref identifies the image for native embedding.
func ProcessImage(documentID, ref, caption string, index int) (fathom.Chunk, error) {
	if ref == "" {
		return fathom.Chunk{}, &fathom.ErrMalformedInput{Kind: "image", Reason: "empty image reference"}
	}
	return fathom.Chunk{
		ID:         fathom.NewID(),
		DocumentID: documentID,
		Modality:   fathom.ModalityImage,
		ChunkIndex: index,
		Content:    NormalizeText(caption),
		ImageRef:   ref,
		Metadata:   map[string]string{"image_ref": ref},
	}, nil
}
