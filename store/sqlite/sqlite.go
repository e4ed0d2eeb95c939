// Package sqlite implements fathom.VectorStore using pure-Go SQLite with
// in-process brute-force vector search. Zero CGO required. Embeddings are
// stored as JSON text, one row per (chunk, embedding kind).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	fathom "github.com/fathomlabs/fathom"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements fathom.VectorStore backed by a local SQLite file.
// All writes for a document happen inside one transaction, which gives the
// atomic-visibility guarantee the store contract requires.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ fathom.VectorStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: fathom.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			modality TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			payload TEXT,
			metadata TEXT,
			truncated INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_modality ON chunks(modality)`,
		`CREATE TABLE IF NOT EXISTS chunk_vectors (
			chunk_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			embedding TEXT NOT NULL,
			PRIMARY KEY (chunk_id, kind)
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// chunkPayload is the JSON column holding the modality-specific content.
type chunkPayload struct {
	Table    *fathom.TableContent `json:"table,omitempty"`
	Audio    *fathom.AudioContent `json:"audio,omitempty"`
	ImageRef string               `json:"image_ref,omitempty"`
}

// UpsertDocument replaces all chunks of a document in a single transaction.
func (s *Store) UpsertDocument(ctx context.Context, documentID string, chunks []fathom.Chunk) error {
	start := time.Now()
	s.logger.Debug("sqlite: upsert document", "id", documentID, "chunks", len(chunks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, documentID); err != nil {
		return err
	}

	for _, chunk := range chunks {
		payload, err := json.Marshal(chunkPayload{
			Table:    chunk.Table,
			Audio:    chunk.Audio,
			ImageRef: chunk.ImageRef,
		})
		if err != nil {
			return fmt.Errorf("marshal payload for chunk %s: %w", chunk.ID, err)
		}
		var metaJSON *string
		if chunk.Metadata != nil {
			data, _ := json.Marshal(chunk.Metadata)
			v := string(data)
			metaJSON = &v
		}
		truncated := 0
		if chunk.Truncated {
			truncated = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (id, document_id, modality, chunk_index, content, payload, metadata, truncated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, documentID, string(chunk.Modality), chunk.ChunkIndex, chunk.Content, string(payload), metaJSON, truncated,
		)
		if err != nil {
			s.logger.Error("sqlite: insert chunk failed", "chunk_id", chunk.ID, "doc_id", documentID, "error", err)
			return fmt.Errorf("insert chunk: %w", err)
		}
		for _, vec := range chunk.Vectors {
			_, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO chunk_vectors (chunk_id, kind, embedding) VALUES (?, ?, ?)`,
				chunk.ID, string(vec.Kind), serializeEmbedding(vec.Values),
			)
			if err != nil {
				return fmt.Errorf("insert vector: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: upsert document commit failed", "id", documentID, "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: upsert document ok", "id", documentID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

// DeleteDocument removes a document's chunks and vectors in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, documentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete document commit failed", "id", documentID, "error", err)
		return err
	}
	s.logger.Debug("sqlite: delete document ok", "id", documentID, "duration", time.Since(start))
	return nil
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, documentID)
	if err != nil {
		return fmt.Errorf("delete document vectors: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Search performs brute-force cosine similarity search over all chunks that
// carry at least one vector. Kind selection happens in process: table chunks
// match on the requested kind (falling back to caption), other chunks on
// their content vector.
func (s *Store) Search(ctx context.Context, vector []float32, filter fathom.SearchFilter, k int) ([]fathom.ScoredChunk, error) {
	start := time.Now()

	query := `SELECT c.id, c.document_id, c.modality, c.chunk_index, c.content, c.payload, c.metadata, c.truncated,
		v.kind, v.embedding
		FROM chunks c JOIN chunk_vectors v ON v.chunk_id = c.id`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Modalities) > 0 {
		placeholders := make([]string, len(filter.Modalities))
		for i, m := range filter.Modalities {
			placeholders[i] = "?"
			args = append(args, string(m))
		}
		clauses = append(clauses, "c.modality IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.DocumentID != "" {
		clauses = append(clauses, "c.document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY c.id, v.kind"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	// Collect chunks with their vectors, then score per the kind rules.
	chunks := make(map[string]*fathom.Chunk)
	var order []string
	for rows.Next() {
		var (
			c         fathom.Chunk
			modality  string
			payload   sql.NullString
			metaJSON  sql.NullString
			truncated int
			kind      string
			embJSON   string
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &modality, &c.ChunkIndex, &c.Content, &payload, &metaJSON, &truncated, &kind, &embJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		existing, ok := chunks[c.ID]
		if !ok {
			c.Modality = fathom.Modality(modality)
			c.Truncated = truncated != 0
			if payload.Valid {
				var p chunkPayload
				if json.Unmarshal([]byte(payload.String), &p) == nil {
					c.Table = p.Table
					c.Audio = p.Audio
					c.ImageRef = p.ImageRef
				}
			}
			if metaJSON.Valid {
				_ = json.Unmarshal([]byte(metaJSON.String), &c.Metadata)
			}
			chunks[c.ID] = &c
			order = append(order, c.ID)
			existing = chunks[c.ID]
		}
		emb, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		existing.SetVector(fathom.EmbeddingKind(kind), emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	var results []fathom.ScoredChunk
	for _, id := range order {
		c := chunks[id]
		score, kind, ok := scoreChunk(c, vector, filter.TableKind)
		if !ok {
			continue
		}
		results = append(results, fathom.ScoredChunk{Chunk: *c, Score: score, Kind: kind})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	s.logger.Debug("sqlite: search ok", "scanned", len(order), "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// GetChunksByIDs returns the chunks with the given ids, skipping unknown ids.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]fathom.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT id, document_id, modality, chunk_index, content, payload, metadata, truncated
		FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var out []fathom.Chunk
	for rows.Next() {
		var (
			c         fathom.Chunk
			modality  string
			payload   sql.NullString
			metaJSON  sql.NullString
			truncated int
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &modality, &c.ChunkIndex, &c.Content, &payload, &metaJSON, &truncated); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Modality = fathom.Modality(modality)
		c.Truncated = truncated != 0
		if payload.Valid {
			var p chunkPayload
			if json.Unmarshal([]byte(payload.String), &p) == nil {
				c.Table = p.Table
				c.Audio = p.Audio
				c.ImageRef = p.ImageRef
			}
		}
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &c.Metadata)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scoreChunk mirrors the in-memory store's kind-selection rules.
func scoreChunk(c *fathom.Chunk, query []float32, tableKind fathom.EmbeddingKind) (float64, fathom.EmbeddingKind, bool) {
	if c.Modality == fathom.ModalityTable {
		if tableKind != "" {
			if v := c.Vector(tableKind); v != nil {
				return cosineSimilarity(query, v), tableKind, true
			}
			if v := c.Vector(fathom.KindCaption); v != nil {
				return cosineSimilarity(query, v), fathom.KindCaption, true
			}
			return 0, "", false
		}
		best := math.Inf(-1)
		var bestKind fathom.EmbeddingKind
		for _, ev := range c.Vectors {
			if score := cosineSimilarity(query, ev.Values); score > best {
				best = score
				bestKind = ev.Kind
			}
		}
		if math.IsInf(best, -1) {
			return 0, "", false
		}
		return best, bestKind, true
	}
	v := c.Vector(fathom.KindContent)
	if v == nil {
		return 0, "", false
	}
	return cosineSimilarity(query, v), fathom.KindContent, true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
