// Package redis stores documents and chunks in Redis and searches chunks
// with a RediSearch HNSW vector index (Redis Stack or Redis 8).
//
// Documents are hashes indexed per owner by a sorted set on creation time.
// Chunks are hashes carrying a little-endian float32 vector, tracked per
// document in a set. The vector index is created on first insert, once the
// embedding dimension is known.
//
// The store is not transactional: each InsertChunks batch is applied with
// MULTI/EXEC, but a failed reprocess can leave a partial chunk set behind.
package redis
