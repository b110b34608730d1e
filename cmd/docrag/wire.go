package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/docrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/core/services"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers"
	"github.com/custodia-labs/docrag/internal/postprocessors"
)

func openSettings(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	svc := services.NewSettingsService(store)
	svc.SetEnvLookup(os.LookupEnv)
	return svc, nil
}

// backend is what every storage adapter exposes.
type backend struct {
	docs     driven.DocumentStore
	chunks   driven.ChunkStore
	searcher driven.SimilaritySearcher
	close    func() error
}

func buildServices(ctx context.Context, configDir string, settings *domain.AppSettings) (*cli.Services, error) {
	home, err := homeDir(configDir)
	if err != nil {
		return nil, err
	}
	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(home, "data")
	}

	chunkers := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(chunkers)
	chunks, err := chunkers.Build(postprocessors.DefaultChunker, map[string]any{
		"chunk_size": settings.Pipeline.ChunkSize,
		"overlap":    settings.Pipeline.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	store, err := openBackend(ctx, settings.Storage, dataDir)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(settings.Storage, dataDir)
	if err != nil {
		return nil, errors.Join(err, store.close())
	}

	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		return nil, errors.Join(err, store.close())
	}

	provider := ai.CreateEmbeddingProvider(settings.Embedding)
	embedder := services.NewEmbeddingClient(provider)

	ingestion := services.NewIngestionService(
		store.docs, store.chunks, blobs,
		normalisers.NewDefaultRegistry(), chunks, embedder,
		settings.Pipeline.BatchSize,
	)

	logger.Debug("Storage backend %s, embedding %s", settings.Storage.Backend, settings.Embedding.Provider)

	return &cli.Services{
		Documents: services.NewDocumentService(store.docs, store.chunks, blobs, ingestion),
		Retrieval: services.NewRetrievalService(embedder, store.searcher),
		Prompts:   services.NewPromptBuilder(prompts),
		OwnerID:   settings.OwnerID,
		Defaults: domain.RetrieveOptions{
			MatchCount:          settings.Retrieval.MatchCount,
			SimilarityThreshold: settings.Retrieval.SimilarityThreshold,
		},
		Close: func() error {
			return errors.Join(provider.Close(), store.close())
		},
	}, nil
}

func homeDir(configDir string) (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, file.DefaultDirName), nil
}

func openBackend(ctx context.Context, settings domain.StorageSettings, dataDir string) (*backend, error) {
	switch settings.Backend {
	case domain.StorageBackendSQLite, "":
		s, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		return &backend{s.DocumentStore(), s.ChunkStore(), s.Searcher(), s.Close}, nil

	case domain.StorageBackendPostgres:
		s, err := postgres.NewStore(ctx, settings.DSN)
		if err != nil {
			return nil, err
		}
		return &backend{s.DocumentStore(), s.ChunkStore(), s.Searcher(), s.Close}, nil

	case domain.StorageBackendRedis:
		s, err := redis.NewStore(ctx, redis.Options{Addr: settings.RedisAddr})
		if err != nil {
			return nil, err
		}
		return &backend{s.DocumentStore(), s.ChunkStore(), s.Searcher(), s.Close}, nil

	case domain.StorageBackendMemory:
		s := memory.NewDocumentStore()
		return &backend{s, s, s, func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfiguration, settings.Backend)
	}
}

// openBlobStore keeps uploads on disk for every persistent backend.
func openBlobStore(settings domain.StorageSettings, dataDir string) (driven.BlobStore, error) {
	if settings.Backend == domain.StorageBackendMemory && settings.BlobDir == "" {
		return memory.NewBlobStore(), nil
	}
	dir := settings.BlobDir
	if dir == "" {
		dir = filepath.Join(dataDir, filesystem.DefaultDirName)
	}
	return filesystem.NewBlobStore(dir)
}
