// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingProvider: Remote embeddings API (OpenAI-compatible or Ollama)
//   - DocumentStore: Document record persistence
//   - ChunkStore: Chunk persistence, keyed by document
//   - SimilaritySearcher: Owner-scoped nearest-neighbour query over chunks
//   - BlobStore: Raw upload bytes
//   - ExtractorRegistry: Text extraction by file extension
//   - Chunker: Splits normalised text into overlapping chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// Adapters may also implement these; services check with a type assertion:
//
//   - ChunkTransactor: Runs chunk replacement in one transaction
//   - PromptStore: Editable prompt templates (defaults are embedded otherwise)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
