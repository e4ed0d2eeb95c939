// Package postgres implements fathom.VectorStore using PostgreSQL with
// pgvector for native cosine similarity search.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	fathom "github.com/fathomlabs/fathom"
)

// Store implements fathom.VectorStore backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance. Each chunk owns one
// vector row per embedding kind, so table chunks carry both their caption
// and serialization embeddings side by side.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert time.
// Only affects new table creation (no ALTER on existing tables).
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Default: pgvector's 40. Applied during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ fathom.VectorStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			modality TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			payload JSONB,
			metadata JSONB,
			truncated BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_modality_idx ON chunks(modality)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_vectors (
			chunk_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			embedding %s NOT NULL,
			PRIMARY KEY (chunk_id, kind)
		)`, vtype),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunk_vectors_embedding_idx ON chunk_vectors USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}

	return nil
}

// chunkPayload is the JSONB column holding the modality-specific content.
type chunkPayload struct {
	Table    *fathom.TableContent `json:"table,omitempty"`
	Audio    *fathom.AudioContent `json:"audio,omitempty"`
	ImageRef string               `json:"image_ref,omitempty"`
}

// UpsertDocument replaces all chunks of a document in a single transaction.
func (s *Store) UpsertDocument(ctx context.Context, documentID string, chunks []fathom.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = $1)`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document vectors: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document chunks: %w", err)
	}

	for _, chunk := range chunks {
		payload, err := json.Marshal(chunkPayload{
			Table:    chunk.Table,
			Audio:    chunk.Audio,
			ImageRef: chunk.ImageRef,
		})
		if err != nil {
			return fmt.Errorf("postgres: marshal payload for chunk %s: %w", chunk.ID, err)
		}
		var metaJSON *string
		if chunk.Metadata != nil {
			data, _ := json.Marshal(chunk.Metadata)
			v := string(data)
			metaJSON = &v
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, modality, chunk_index, content, payload, metadata, truncated)
			 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
			 ON CONFLICT (id) DO UPDATE SET
			   document_id = EXCLUDED.document_id,
			   modality = EXCLUDED.modality,
			   chunk_index = EXCLUDED.chunk_index,
			   content = EXCLUDED.content,
			   payload = EXCLUDED.payload,
			   metadata = EXCLUDED.metadata,
			   truncated = EXCLUDED.truncated`,
			chunk.ID, documentID, string(chunk.Modality), chunk.ChunkIndex, chunk.Content, string(payload), metaJSON, chunk.Truncated)
		if err != nil {
			return fmt.Errorf("postgres: insert chunk: %w", err)
		}

		for _, vec := range chunk.Vectors {
			embStr := serializeEmbedding(vec.Values)
			_, err = tx.Exec(ctx,
				`INSERT INTO chunk_vectors (chunk_id, kind, embedding)
				 VALUES ($1, $2, $3::vector)
				 ON CONFLICT (chunk_id, kind) DO UPDATE SET embedding = EXCLUDED.embedding`,
				chunk.ID, string(vec.Kind), embStr)
			if err != nil {
				return fmt.Errorf("postgres: insert vector: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// DeleteDocument removes a document's chunks and vectors in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = $1)`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document vectors: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document chunks: %w", err)
	}
	return tx.Commit(ctx)
}

// Search performs vector similarity search using pgvector's cosine distance
// operator. Kind selection follows the store contract: table chunks match on
// the requested kind with a caption fallback, other chunks on their content
// vector. The SQL pre-filters eligible (modality, kind) pairs so the HNSW
// index stays usable; the per-chunk preference between requested kind and
// caption fallback resolves in process.
func (s *Store) Search(ctx context.Context, vector []float32, filter fathom.SearchFilter, k int) ([]fathom.ScoredChunk, error) {
	embStr := serializeEmbedding(vector)

	tableKinds := []string{string(fathom.KindCaption), string(fathom.KindSerialization)}
	if filter.TableKind != "" {
		// Requested kind plus caption for the truncated-chunk fallback.
		tableKinds = []string{string(filter.TableKind)}
		if filter.TableKind != fathom.KindCaption {
			tableKinds = append(tableKinds, string(fathom.KindCaption))
		}
	}

	q := `SELECT c.id, c.document_id, c.modality, c.chunk_index, c.content, c.payload, c.metadata, c.truncated,
		v.kind, 1 - (v.embedding <=> $1::vector) AS score
	 FROM chunk_vectors v JOIN chunks c ON c.id = v.chunk_id
	 WHERE ((c.modality = 'table' AND v.kind = ANY($2)) OR (c.modality <> 'table' AND v.kind = 'content'))`
	args := []any{embStr, tableKinds}
	p := 3
	if len(filter.Modalities) > 0 {
		mods := make([]string, len(filter.Modalities))
		for i, m := range filter.Modalities {
			mods[i] = string(m)
		}
		q += fmt.Sprintf(" AND c.modality = ANY($%d)", p)
		args = append(args, mods)
		p++
	}
	if filter.DocumentID != "" {
		q += fmt.Sprintf(" AND c.document_id = $%d", p)
		args = append(args, filter.DocumentID)
		p++
	}
	// Over-fetch so a chunk matched on both kinds still leaves k distinct
	// chunks after in-process dedup.
	q += fmt.Sprintf(" ORDER BY v.embedding <=> $1::vector LIMIT $%d", p)
	args = append(args, k*2)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search chunks: %w", err)
	}
	defer rows.Close()

	type scoredKind struct {
		chunk fathom.Chunk
		score float64
		kind  fathom.EmbeddingKind
	}
	best := make(map[string]scoredKind)
	for rows.Next() {
		var (
			c        fathom.Chunk
			modality string
			payload  []byte
			metaJSON []byte
			kind     string
			score    float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &modality, &c.ChunkIndex, &c.Content, &payload, &metaJSON, &c.Truncated, &kind, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Modality = fathom.Modality(modality)
		if payload != nil {
			var pl chunkPayload
			if json.Unmarshal(payload, &pl) == nil {
				c.Table = pl.Table
				c.Audio = pl.Audio
				c.ImageRef = pl.ImageRef
			}
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &c.Metadata)
		}

		ek := fathom.EmbeddingKind(kind)
		prev, seen := best[c.ID]
		if !seen {
			best[c.ID] = scoredKind{chunk: c, score: score, kind: ek}
			continue
		}
		// When a requested table kind is present, it wins over the caption
		// fallback regardless of score.
		if filter.TableKind != "" && c.Modality == fathom.ModalityTable {
			if prev.kind != filter.TableKind && ek == filter.TableKind {
				best[c.ID] = scoredKind{chunk: c, score: score, kind: ek}
			}
			continue
		}
		if score > prev.score {
			best[c.ID] = scoredKind{chunk: c, score: score, kind: ek}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate chunks: %w", err)
	}

	results := make([]fathom.ScoredChunk, 0, len(best))
	for _, sk := range best {
		results = append(results, fathom.ScoredChunk{Chunk: sk.chunk, Score: sk.score, Kind: sk.kind})
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
	return results, nil
}

// GetChunksByIDs returns the chunks with the given ids, skipping unknown ids.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]fathom.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, modality, chunk_index, content, payload, metadata, truncated
		 FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks by ids: %w", err)
	}
	defer rows.Close()

	var chunks []fathom.Chunk
	for rows.Next() {
		var (
			c        fathom.Chunk
			modality string
			payload  []byte
			metaJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &modality, &c.ChunkIndex, &c.Content, &payload, &metaJSON, &c.Truncated); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Modality = fathom.Modality(modality)
		if payload != nil {
			var pl chunkPayload
			if json.Unmarshal(payload, &pl) == nil {
				c.Table = pl.Table
				c.Audio = pl.Audio
				c.ImageRef = pl.ImageRef
			}
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &c.Metadata)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Close is a no-op. The caller owns the pool and manages its lifecycle.
func (s *Store) Close() error {
	return nil
}

// serializeEmbedding converts []float32 to a string like "[0.1,0.2,0.3]"
// suitable for pgvector's text input format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
