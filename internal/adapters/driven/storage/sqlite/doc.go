// Package sqlite provides a SQLite-based implementation of the document,
// chunk and similarity-search ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements several store interfaces
// through a single database connection:
//
//   - DocumentStore: Document record persistence
//   - ChunkStore and ChunkTransactor: Chunk persistence, replaced in one transaction
//   - SimilaritySearcher: Owner-scoped cosine ranking computed in process
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.docrag/data/docrag.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
