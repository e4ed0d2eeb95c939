package fathom

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// IDs are unique across all modalities; a collision is a defect.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ChunkKey returns a stable human-readable key for logs: modality plus
// document-scoped index.
func ChunkKey(c Chunk) string {
	return fmt.Sprintf("%s/%s#%d", c.DocumentID, c.Modality, c.ChunkIndex)
}
