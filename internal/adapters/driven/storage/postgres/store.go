package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// migrationLockID serialises migrations across processes sharing a database.
const migrationLockID = 73_546_921

// Store is a PostgreSQL store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", domain.ErrConfiguration)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %w", domain.ErrStorageFailure, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %w", domain.ErrStorageFailure, err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{pool: s.pool}
}

// ChunkStore returns a ChunkStore backed by this store. The returned value
// also implements driven.ChunkTransactor.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{pool: s.pool}
}

// Searcher returns a SimilaritySearcher that calls match_chunks.
func (s *Store) Searcher() driven.SimilaritySearcher {
	return &chunkStore{pool: s.pool}
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID) //nolint:errcheck

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := conn.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
			return err
		})
		if err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Document Store ====================

type documentStore struct {
	pool *pgxpool.Pool
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, owner_id, filename, storage_path, status, chunk_count, error_message, created_at, updated_at`

func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, doc.ID, doc.OwnerID, doc.Filename, doc.StoragePath, string(doc.Status),
		doc.ChunkCount, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *documentStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, chunk_count = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`, string(doc.Status), doc.ChunkCount, doc.ErrorMessage, doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("%w: updating document: %w", domain.ErrStorageFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %w", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %w", domain.ErrStorageFailure, err)
	}
	return docs, nil
}

func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return fmt.Errorf("%w: deleting document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.StoragePath, &status,
		&doc.ChunkCount, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning document: %w", domain.ErrStorageFailure, err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// ==================== Chunk Store ====================

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type chunkStore struct {
	pool *pgxpool.Pool
}

var (
	_ driven.ChunkStore         = (*chunkStore)(nil)
	_ driven.ChunkTransactor    = (*chunkStore)(nil)
	_ driven.SimilaritySearcher = (*chunkStore)(nil)
)

func (s *chunkStore) DeleteChunks(ctx context.Context, documentID string) error {
	return deleteChunks(ctx, s.pool, documentID)
}

// InsertChunks stores one batch atomically.
func (s *chunkStore) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	return s.WithinTx(ctx, func(ctx context.Context, w driven.ChunkWriter) error {
		return w.InsertChunks(ctx, chunks)
	})
}

func (s *chunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks WHERE document_id = $1", documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", domain.ErrStorageFailure, err)
	}
	return n, nil
}

// WithinTx runs fn in one transaction, committed only if fn returns nil.
func (s *chunkStore) WithinTx(ctx context.Context, fn func(context.Context, driven.ChunkWriter) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorageFailure, err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := fn(ctx, &txWriter{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// SimilaritySearch calls match_chunks, which orders by cosine distance.
func (s *chunkStore) SimilaritySearch(
	ctx context.Context, query []float32, ownerID string, limit int,
) ([]domain.RetrievedChunk, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, document_id, content, metadata, similarity FROM match_chunks($1, $2, $3)",
		pgvector.NewVector(query), limit, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: match_chunks: %w", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	results := []domain.RetrievedChunk{}
	for rows.Next() {
		var c domain.RetrievedChunk
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &metadata, &c.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %w", domain.ErrStorageFailure, err)
		}
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata: %w", domain.ErrStorageFailure, err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating matches: %w", domain.ErrStorageFailure, err)
	}
	return results, nil
}

type txWriter struct {
	tx pgx.Tx
}

func (w *txWriter) DeleteChunks(ctx context.Context, documentID string) error {
	return deleteChunks(ctx, w.tx, documentID)
}

func (w *txWriter) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	return insertChunks(ctx, w.tx, chunks)
}

func deleteChunks(ctx context.Context, q querier, documentID string) error {
	if _, err := q.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("%w: deleting chunks: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// insertChunks queues every row in one pgx batch, a single round trip.
func insertChunks(ctx context.Context, q querier, chunks []domain.PersistedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO chunks (id, document_id, owner_id, content, embedding, chunk_index, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.DocumentID, c.OwnerID, c.Content, pgvector.NewVector(c.Embedding), c.ChunkIndex, metadataJSON)
	}

	results := q.SendBatch(ctx, batch)
	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("%w: saving chunk %d: %w", domain.ErrStorageFailure, c.ChunkIndex, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("%w: closing batch: %w", domain.ErrStorageFailure, err)
	}
	return nil
}
