package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "docrag.db"

// Store is a SQLite-backed store that provides access to the document and
// chunk interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.docrag/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docrag", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Pragmas in the DSN apply to every pooled connection, so foreign keys
	// (and the chunk cascade) hold regardless of which connection runs a query.
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns a ChunkStore backed by this store. The returned value
// also implements driven.ChunkTransactor.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// Searcher returns a SimilaritySearcher backed by this store.
func (s *Store) Searcher() driven.SimilaritySearcher {
	return &chunkStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, owner_id, filename, storage_path, status, chunk_count, error_message, created_at, updated_at`

// CreateDocument stores a new document.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.OwnerID, doc.Filename, doc.StoragePath, string(doc.Status),
		doc.ChunkCount, doc.ErrorMessage, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: creating document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// UpdateDocument overwrites the mutable fields of a document.
func (s *documentStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, chunk_count = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(doc.Status), doc.ChunkCount, doc.ErrorMessage, doc.UpdatedAt.UTC(), doc.ID)
	if err != nil {
		return fmt.Errorf("%w: updating document: %w", domain.ErrStorageFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating document: %w", domain.ErrStorageFailure, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments returns an owner's documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE owner_id = ?
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

// DeleteDocument removes a document. Its chunks go with it via ON DELETE CASCADE.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: deleting document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// ==================== Chunk Store ====================

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// chunkStore implements driven.ChunkStore, driven.ChunkTransactor and
// driven.SimilaritySearcher.
type chunkStore struct {
	store *Store
}

var (
	_ driven.ChunkStore         = (*chunkStore)(nil)
	_ driven.ChunkTransactor    = (*chunkStore)(nil)
	_ driven.SimilaritySearcher = (*chunkStore)(nil)
)

// DeleteChunks removes every chunk belonging to a document.
func (s *chunkStore) DeleteChunks(ctx context.Context, documentID string) error {
	return deleteChunks(ctx, s.store.db, documentID)
}

// InsertChunks stores a batch of chunks in one transaction.
func (s *chunkStore) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	return s.WithinTx(ctx, func(ctx context.Context, w driven.ChunkWriter) error {
		return w.InsertChunks(ctx, chunks)
	})
}

// CountChunks returns the number of chunks stored for a document.
func (s *chunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", domain.ErrStorageFailure, err)
	}
	return n, nil
}

// WithinTx runs fn against a writer bound to one transaction. The
// transaction commits only if fn returns nil.
func (s *chunkStore) WithinTx(ctx context.Context, fn func(context.Context, driven.ChunkWriter) error) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorageFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &txWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// SimilaritySearch ranks the owner's chunks by cosine similarity in process.
func (s *chunkStore) SimilaritySearch(
	ctx context.Context, query []float32, ownerID string, limit int,
) ([]domain.RetrievedChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, embedding, metadata
		FROM chunks WHERE owner_id = ?
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %w", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	var candidates []domain.RetrievedChunk
	var vectors [][]float32
	for rows.Next() {
		var c domain.RetrievedChunk
		var blob []byte
		var metadataJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %w", domain.ErrStorageFailure, err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshalling chunk metadata: %w", domain.ErrStorageFailure, err)
		}
		candidates = append(candidates, c)
		vectors = append(vectors, bytesToFloat32Slice(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %w", domain.ErrStorageFailure, err)
	}

	ranked := vecmath.TopK(query, vectors, limit)
	results := make([]domain.RetrievedChunk, len(ranked))
	for i, r := range ranked {
		results[i] = candidates[r.Pos]
		results[i].Similarity = r.Score
	}
	return results, nil
}

// txWriter is a ChunkWriter bound to an open transaction.
type txWriter struct {
	tx *sql.Tx
}

var _ driven.ChunkWriter = (*txWriter)(nil)

func (w *txWriter) DeleteChunks(ctx context.Context, documentID string) error {
	return deleteChunks(ctx, w.tx, documentID)
}

func (w *txWriter) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	return insertChunks(ctx, w.tx, chunks)
}

func deleteChunks(ctx context.Context, db execer, documentID string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("%w: deleting chunks: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func insertChunks(ctx context.Context, db execer, chunks []domain.PersistedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, owner_id, content, embedding, chunk_index, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %w", domain.ErrStorageFailure, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if c.Metadata == nil {
			metadataJSON = []byte("{}")
		}

		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.OwnerID, c.Content,
			float32SliceToBytes(c.Embedding), c.ChunkIndex, string(metadataJSON)); err != nil {
			return fmt.Errorf("%w: saving chunk %d: %w", domain.ErrStorageFailure, c.ChunkIndex, err)
		}
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to little-endian bytes for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var status string

	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.StoragePath, &status,
		&doc.ChunkCount, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning document: %w", domain.ErrStorageFailure, err)
	}
	doc.Status = domain.DocumentStatus(status)

	return &doc, nil
}
