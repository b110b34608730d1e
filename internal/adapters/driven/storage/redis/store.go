package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

const (
	// DefaultAddr is used when no address is configured.
	DefaultAddr = "localhost:6379"

	// IndexName is the RediSearch index over chunk hashes.
	IndexName = "docrag-chunks"

	keyPrefix   = "docrag:"
	docPrefix   = keyPrefix + "doc:"
	chunkPrefix = keyPrefix + "chunk:"
	ownerPrefix = keyPrefix + "owner:"

	// dimKey records the vector dimension the index was created with.
	dimKey = keyPrefix + "meta:dim"

	defaultEFConstruction = 200
	defaultM              = 16
)

// Hash field names.
const (
	fieldOwner        = "owner_id"
	fieldFilename     = "filename"
	fieldStoragePath  = "storage_path"
	fieldStatus       = "status"
	fieldChunkCount   = "chunk_count"
	fieldErrorMessage = "error_message"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"

	fieldDocumentID = "document_id"
	fieldContent    = "content"
	fieldVector     = "vector"
	fieldChunkIndex = "chunk_index"
	fieldMetadata   = "metadata"
	fieldScore      = "score"
)

// Store is a Redis-backed document, chunk and vector store.
type Store struct {
	client *goredis.Client

	mu         sync.Mutex
	indexReady bool
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}

	// FT.SEARCH replies are parsed in their RESP2 shape.
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: connecting to redis at %s: %w", domain.ErrStorageFailure, opts.Addr, err)
	}

	return &Store{client: client}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns a ChunkStore backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// Searcher returns a SimilaritySearcher over the vector index.
func (s *Store) Searcher() driven.SimilaritySearcher {
	return &chunkStore{store: s}
}

func docKey(id string) string       { return docPrefix + id }
func docChunksKey(id string) string { return docPrefix + id + ":chunks" }
func chunkKey(id string) string     { return chunkPrefix + id }
func ownerDocsKey(owner string) string {
	return ownerPrefix + owner + ":docs"
}

// ensureIndex creates the HNSW index for vectors of the given dimension.
func (s *Store) ensureIndex(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexReady {
		return nil
	}

	exists, err := s.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.indexReady = true
		return nil
	}

	err = s.client.Do(ctx, "FT.CREATE", IndexName,
		"ON", "HASH",
		"PREFIX", "1", chunkPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(defaultEFConstruction),
		"M", strconv.Itoa(defaultM),
		fieldOwner, "TAG",
		fieldDocumentID, "TAG",
		fieldChunkIndex, "NUMERIC",
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("%w: creating vector index: %w", domain.ErrStorageFailure, err)
	}
	if err := s.client.SetNX(ctx, dimKey, dim, 0).Err(); err != nil {
		return fmt.Errorf("%w: recording index dimension: %w", domain.ErrStorageFailure, err)
	}

	s.indexReady = true
	return nil
}

// indexDimension returns the dimension recorded for the index, or 0 if
// none is recorded.
func (s *Store) indexDimension(ctx context.Context) (int, error) {
	dim, err := s.client.Get(ctx, dimKey).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading index dimension: %w", domain.ErrStorageFailure, err)
	}
	return dim, nil
}

func (s *Store) indexExists(ctx context.Context) (bool, error) {
	err := s.client.Do(ctx, "FT.INFO", IndexName).Err()
	if err == nil {
		return true, nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index") {
		return false, nil
	}
	return false, fmt.Errorf("%w: inspecting vector index: %w", domain.ErrStorageFailure, err)
}

// ==================== Document Store ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	client := d.store.client

	n, err := client.Exists(ctx, docKey(doc.ID)).Result()
	if err != nil {
		return fmt.Errorf("%w: checking document: %w", domain.ErrStorageFailure, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
	}

	_, err = client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, docKey(doc.ID), documentFields(doc))
		pipe.ZAdd(ctx, ownerDocsKey(doc.OwnerID), goredis.Z{
			Score:  float64(doc.CreatedAt.UnixNano()),
			Member: doc.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: creating document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	fields, err := d.store.client.HGetAll(ctx, docKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: getting document: %w", domain.ErrStorageFailure, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return parseDocument(id, fields)
}

func (d *documentStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	client := d.store.client

	n, err := client.Exists(ctx, docKey(doc.ID)).Result()
	if err != nil {
		return fmt.Errorf("%w: checking document: %w", domain.ErrStorageFailure, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	err = client.HSet(ctx, docKey(doc.ID),
		fieldStatus, string(doc.Status),
		fieldChunkCount, doc.ChunkCount,
		fieldErrorMessage, doc.ErrorMessage,
		fieldUpdatedAt, doc.UpdatedAt.UnixNano(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: updating document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func (d *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	client := d.store.client

	ids, err := client.ZRevRange(ctx, ownerDocsKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %w", domain.ErrStorageFailure, err)
	}

	docs := make([]domain.Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, docKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading documents: %w", domain.ErrStorageFailure, err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		doc, err := parseDocument(ids[i], fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	client := d.store.client

	owner, err := client.HGet(ctx, docKey(id), fieldOwner).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: loading document owner: %w", domain.ErrStorageFailure, err)
	}

	if err := deleteChunks(ctx, client, id); err != nil {
		return err
	}

	_, err = client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, docKey(id))
		pipe.ZRem(ctx, ownerDocsKey(owner), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: deleting document: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func documentFields(doc *domain.Document) map[string]any {
	return map[string]any{
		fieldOwner:        doc.OwnerID,
		fieldFilename:     doc.Filename,
		fieldStoragePath:  doc.StoragePath,
		fieldStatus:       string(doc.Status),
		fieldChunkCount:   doc.ChunkCount,
		fieldErrorMessage: doc.ErrorMessage,
		fieldCreatedAt:    doc.CreatedAt.UnixNano(),
		fieldUpdatedAt:    doc.UpdatedAt.UnixNano(),
	}
}

func parseDocument(id string, fields map[string]string) (*domain.Document, error) {
	doc := &domain.Document{
		ID:           id,
		OwnerID:      fields[fieldOwner],
		Filename:     fields[fieldFilename],
		StoragePath:  fields[fieldStoragePath],
		Status:       domain.DocumentStatus(fields[fieldStatus]),
		ErrorMessage: fields[fieldErrorMessage],
	}

	var err error
	if doc.ChunkCount, err = strconv.Atoi(fields[fieldChunkCount]); err != nil {
		return nil, fmt.Errorf("%w: document %s chunk_count: %w", domain.ErrStorageFailure, id, err)
	}
	if doc.CreatedAt, err = parseUnixNano(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("%w: document %s created_at: %w", domain.ErrStorageFailure, id, err)
	}
	if doc.UpdatedAt, err = parseUnixNano(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("%w: document %s updated_at: %w", domain.ErrStorageFailure, id, err)
	}
	return doc, nil
}

func parseUnixNano(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}

// ==================== Chunk Store ====================

type chunkStore struct {
	store *Store
}

var (
	_ driven.ChunkStore         = (*chunkStore)(nil)
	_ driven.SimilaritySearcher = (*chunkStore)(nil)
	_ driven.DimensionChecker   = (*chunkStore)(nil)
)

func (c *chunkStore) DeleteChunks(ctx context.Context, documentID string) error {
	return deleteChunks(ctx, c.store.client, documentID)
}

func (c *chunkStore) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := c.store.ensureIndex(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	payloads := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		metadata := ch.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		payloads[i] = map[string]any{
			fieldDocumentID: ch.DocumentID,
			fieldOwner:      ch.OwnerID,
			fieldContent:    ch.Content,
			fieldVector:     encodeVector(ch.Embedding),
			fieldChunkIndex: ch.ChunkIndex,
			fieldMetadata:   string(metadataJSON),
		}
	}

	_, err := c.store.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, ch := range chunks {
			pipe.HSet(ctx, chunkKey(ch.ID), payloads[i])
			pipe.SAdd(ctx, docChunksKey(ch.DocumentID), ch.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: saving chunks: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// CheckDimensions compares dims with the dimension the index was created
// with. Until the index exists any dimension fits.
func (c *chunkStore) CheckDimensions(ctx context.Context, dims int) error {
	indexed, err := c.store.indexDimension(ctx)
	if err != nil {
		return err
	}
	return compareDimensions(indexed, dims)
}

func compareDimensions(indexed, dims int) error {
	if indexed == 0 || dims == 0 || indexed == dims {
		return nil
	}
	return fmt.Errorf("%w: index %s holds %d-dimension vectors but the embedding model returns %d; "+
		"switch back to the original model or drop the index and reprocess",
		domain.ErrConfiguration, IndexName, indexed, dims)
}

func (c *chunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	n, err := c.store.client.SCard(ctx, docChunksKey(documentID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", domain.ErrStorageFailure, err)
	}
	return int(n), nil
}

// SimilaritySearch runs an owner-filtered KNN query. RediSearch reports
// cosine distance, converted here to similarity as 1 - distance.
func (c *chunkStore) SimilaritySearch(
	ctx context.Context, query []float32, ownerID string, limit int,
) ([]domain.RetrievedChunk, error) {
	exists, err := c.store.indexExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists || limit <= 0 {
		return []domain.RetrievedChunk{}, nil
	}

	q := fmt.Sprintf("@%s:{%s}=>[KNN %d @%s $vec AS %s]",
		fieldOwner, escapeTag(ownerID), limit, fieldVector, fieldScore)

	reply, err := c.store.client.Do(ctx, "FT.SEARCH", IndexName, q,
		"PARAMS", "2", "vec", encodeVector(query),
		"RETURN", "5", fieldDocumentID, fieldContent, fieldChunkIndex, fieldMetadata, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", domain.ErrStorageFailure, err)
	}

	results, err := parseSearchReply(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing search reply: %w", domain.ErrStorageFailure, err)
	}
	return results, nil
}

func deleteChunks(ctx context.Context, client *goredis.Client, documentID string) error {
	ids, err := client.SMembers(ctx, docChunksKey(documentID)).Result()
	if err != nil {
		return fmt.Errorf("%w: listing chunks: %w", domain.ErrStorageFailure, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, chunkKey(id))
	}
	keys = append(keys, docChunksKey(documentID))

	if err := client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: deleting chunks: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// parseSearchReply decodes a RESP2 FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...].
func parseSearchReply(reply any) ([]domain.RetrievedChunk, error) {
	values, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}

	results := []domain.RetrievedChunk{}
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key type %T", values[i])
		}
		fields, ok := values[i+1].([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected fields type %T", values[i+1])
		}

		chunk := domain.RetrievedChunk{ID: strings.TrimPrefix(key, chunkPrefix)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case fieldDocumentID:
				chunk.DocumentID = value
			case fieldContent:
				chunk.Content = value
			case fieldMetadata:
				if err := json.Unmarshal([]byte(value), &chunk.Metadata); err != nil {
					return nil, fmt.Errorf("chunk %s metadata: %w", chunk.ID, err)
				}
			case fieldScore:
				distance, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("chunk %s score: %w", chunk.ID, err)
				}
				chunk.Similarity = 1 - distance
			}
		}
		results = append(results, chunk)
	}
	return results, nil
}

// escapeTag escapes characters RediSearch treats as syntax inside a TAG query.
func escapeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		isWord := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 127
		if !isWord {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
