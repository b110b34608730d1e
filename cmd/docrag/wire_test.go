package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestOpenSettings_Defaults(t *testing.T) {
	svc, err := openSettings(t.TempDir())
	require.NoError(t, err)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.StorageBackendSQLite, settings.Storage.Backend)
	assert.Equal(t, domain.DefaultOwnerID, settings.OwnerID)
}

func TestBuildServices_Memory(t *testing.T) {
	ctx := context.Background()
	settings := domain.DefaultAppSettings()
	settings.Storage.Backend = domain.StorageBackendMemory

	svc, err := buildServices(ctx, t.TempDir(), &settings)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	assert.Equal(t, domain.DefaultOwnerID, svc.OwnerID)
	assert.Equal(t, settings.Retrieval.MatchCount, svc.Defaults.MatchCount)

	doc, err := svc.Documents.Upload(ctx, svc.OwnerID, "notes.txt", []byte("hello"))
	require.NoError(t, err)

	docs, err := svc.Documents.List(ctx, svc.OwnerID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	// Embedding is unconfigured, so the run fails without touching the network.
	processed, err := svc.Documents.Process(ctx, svc.OwnerID, doc.ID)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	require.NotNil(t, processed)
	assert.Equal(t, domain.DocumentStatusFailed, processed.Status)
}

func TestBuildServices_SQLite(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	settings := domain.DefaultAppSettings()

	svc, err := buildServices(ctx, home, &settings)
	require.NoError(t, err)

	_, err = svc.Documents.Upload(ctx, svc.OwnerID, "a.md", []byte("# title"))
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	_, err = os.Stat(filepath.Join(home, "data"))
	assert.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(home, "data", filesystem.DefaultDirName, svc.OwnerID))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildServices_Errors(t *testing.T) {
	ctx := context.Background()

	settings := domain.DefaultAppSettings()
	settings.Storage.Backend = "mongo"
	_, err := buildServices(ctx, t.TempDir(), &settings)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	settings = domain.DefaultAppSettings()
	settings.Storage.Backend = domain.StorageBackendMemory
	settings.Pipeline.ChunkOverlap = settings.Pipeline.ChunkSize
	_, err = buildServices(ctx, t.TempDir(), &settings)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkParams)

	settings = domain.DefaultAppSettings()
	settings.Storage.Backend = domain.StorageBackendPostgres
	_, err = buildServices(ctx, t.TempDir(), &settings)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOpenBlobStore(t *testing.T) {
	dir := t.TempDir()

	blobs, err := openBlobStore(domain.StorageSettings{Backend: domain.StorageBackendMemory}, dir)
	require.NoError(t, err)
	assert.IsType(t, &memory.BlobStore{}, blobs)

	blobs, err = openBlobStore(domain.StorageSettings{Backend: domain.StorageBackendSQLite}, dir)
	require.NoError(t, err)
	require.IsType(t, &filesystem.BlobStore{}, blobs)
	assert.Equal(t, filepath.Join(dir, filesystem.DefaultDirName), blobs.(*filesystem.BlobStore).Root())

	custom := filepath.Join(dir, "custom")
	blobs, err = openBlobStore(domain.StorageSettings{Backend: domain.StorageBackendMemory, BlobDir: custom}, dir)
	require.NoError(t, err)
	assert.Equal(t, custom, blobs.(*filesystem.BlobStore).Root())
}

func TestHomeDir(t *testing.T) {
	got, err := homeDir("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", got)

	got, err = homeDir("")
	require.NoError(t, err)
	assert.Equal(t, ".docrag", filepath.Base(got))
}
