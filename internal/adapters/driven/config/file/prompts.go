package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults/*.txt defaults/README.md
var defaultFS embed.FS

const promptExt = ".txt"

// PromptStore serves system prompt templates from a directory of .txt files.
// On first use the directory is seeded with the built-in templates; a file
// that is missing or unreadable falls back to its built-in version.
type PromptStore struct {
	dir string

	mu     sync.Mutex
	seeded bool
	loaded map[string]string
}

// NewPromptStore creates a prompt store rooted at dir.
// An empty dir means ~/.docrag/prompts. No I/O happens until Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName, "prompts")
	}
	return &PromptStore{dir: dir, loaded: make(map[string]string)}, nil
}

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	data, err := defaultFS.ReadFile(path.Join("defaults", name+promptExt))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name, reading it from disk once and
// caching it until Reload.
func (s *PromptStore) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prompt, ok := s.loaded[name]; ok {
		return prompt, nil
	}

	builtin, hasBuiltin := DefaultPrompt(name)
	if !s.seeded {
		if err := s.seed(); err != nil {
			if hasBuiltin {
				return builtin, nil
			}
			return "", err
		}
		s.seeded = true
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
	switch {
	case err == nil:
		s.loaded[name] = strings.TrimSpace(string(data))
	case hasBuiltin:
		s.loaded[name] = builtin
	default:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	return s.loaded[name], nil
}

// Reload drops cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.loaded = make(map[string]string)
	s.mu.Unlock()
}

// seed creates the directory and writes any built-in file not yet present.
// Files the user has edited are never overwritten.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(s.dir, e.Name())
		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		data, err := defaultFS.ReadFile(path.Join("defaults", e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			return fmt.Errorf("write %s: %w", e.Name(), err)
		}
	}
	return nil
}
