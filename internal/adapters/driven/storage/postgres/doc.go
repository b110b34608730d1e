// Package postgres stores documents and chunks in PostgreSQL with the
// pgvector extension, using a jackc/pgx connection pool.
//
// Similarity search runs in the database through the match_chunks SQL
// function created by the initial migration. Chunk replacement is
// transactional.
//
// Integration tests need a server with pgvector available and run only
// when DOCRAG_DATABASE_URL is set.
package postgres
