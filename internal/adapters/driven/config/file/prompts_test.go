package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func newTestPromptStore(t *testing.T) (*PromptStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "prompts")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	return store, dir
}

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(content), 0600))
}

func TestNewPromptStore_Dir(t *testing.T) {
	store, dir := newTestPromptStore(t)
	assert.Equal(t, dir, store.Dir())

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	store, err = NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".docrag", "prompts"), store.Dir())
}

func TestNewPromptStore_NoIO(t *testing.T) {
	_, dir := newTestPromptStore(t)

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "directory created before first Load")
}

func TestPromptStore_SeedsDirectory(t *testing.T) {
	store, dir := newTestPromptStore(t)

	_, err := store.Load(driven.PromptSystem)
	require.NoError(t, err)

	for _, f := range []string{"system.txt", "system_with_context.txt", "README.md"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestPromptStore_BuiltinTemplates(t *testing.T) {
	store, _ := newTestPromptStore(t)

	withContext, err := store.Load(driven.PromptSystemWithContext)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(withContext, "%s"))
	assert.Contains(t, withContext, "## DOCUMENT EXCERPTS")

	plain, err := store.Load(driven.PromptSystem)
	require.NoError(t, err)
	assert.NotContains(t, plain, "%s")
}

func TestPromptStore_UserEdits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"verbatim", "Answer from: %s", "Answer from: %s"},
		{"trimmed", "\n\n  Excerpts: %s  \n", "Excerpts: %s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newTestPromptStore(t)
			writePrompt(t, dir, driven.PromptSystemWithContext, tt.content)

			got, err := store.Load(driven.PromptSystemWithContext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Seeding leaves the edited file alone.
			data, err := os.ReadFile(filepath.Join(dir, driven.PromptSystemWithContext+".txt"))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	store, dir := newTestPromptStore(t)

	first, err := store.Load(driven.PromptSystemWithContext)
	require.NoError(t, err)

	writePrompt(t, dir, driven.PromptSystemWithContext, "edited %s")

	cached, err := store.Load(driven.PromptSystemWithContext)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptSystemWithContext)
	require.NoError(t, err)
	assert.Equal(t, "edited %s", fresh)
}

func TestPromptStore_DeletedFileFallsBack(t *testing.T) {
	store, dir := newTestPromptStore(t)
	_, err := store.Load(driven.PromptSystem)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "system.txt")))
	store.Reload()

	got, err := store.Load(driven.PromptSystem)
	require.NoError(t, err)
	builtin, _ := DefaultPrompt(driven.PromptSystem)
	assert.Equal(t, builtin, got)
}

func TestPromptStore_UnwritableDirFallsBack(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	// A regular file where the directory should be makes seeding fail.
	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	got, err := store.Load(driven.PromptSystemWithContext)
	require.NoError(t, err)
	assert.Contains(t, got, "%s")

	_, err = store.Load("summary")
	assert.Error(t, err)
}

func TestPromptStore_UnknownPrompt(t *testing.T) {
	store, _ := newTestPromptStore(t)

	_, err := store.Load("summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary")
}

func TestPromptStore_ConcurrentLoads(t *testing.T) {
	store, _ := newTestPromptStore(t)

	const workers = 50
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Load(driven.PromptSystemWithContext)
			assert.NoError(t, err)
			results[i] = p
		}()
	}
	wg.Wait()

	for _, p := range results {
		assert.Equal(t, results[0], p)
	}
}

func TestDefaultPrompt(t *testing.T) {
	p, ok := DefaultPrompt(driven.PromptSystem)
	assert.True(t, ok)
	assert.NotEmpty(t, p)

	_, ok = DefaultPrompt("missing")
	assert.False(t, ok)
}
