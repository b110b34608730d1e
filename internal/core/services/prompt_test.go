package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func TestPromptBuilder_SystemPrompt(t *testing.T) {
	store := &mockPromptStore{prompts: map[string]string{
		driven.PromptSystem:            "plain prompt",
		driven.PromptSystemWithContext: "excerpts:\n%s\nend",
	}}
	b := NewPromptBuilder(store)

	t.Run("without context", func(t *testing.T) {
		got, err := b.SystemPrompt("ignored", false)
		require.NoError(t, err)
		assert.Equal(t, "plain prompt", got)
	})

	t.Run("with context", func(t *testing.T) {
		got, err := b.SystemPrompt("[Source 1: a.txt]\nbody with 100% coverage", true)
		require.NoError(t, err)
		assert.Equal(t, "excerpts:\n[Source 1: a.txt]\nbody with 100% coverage\nend", got)
	})
}

func TestPromptBuilder_TemplateWithoutPlaceholder(t *testing.T) {
	b := NewPromptBuilder(&mockPromptStore{prompts: map[string]string{
		driven.PromptSystemWithContext: "Use the excerpts below.",
	}})

	got, err := b.SystemPrompt("ctx", true)

	require.NoError(t, err)
	assert.Equal(t, "Use the excerpts below.\n\nctx", got)
}

func TestPromptBuilder_LoadError(t *testing.T) {
	b := NewPromptBuilder(&mockPromptStore{err: errors.New("permission denied")})

	_, err := b.SystemPrompt("", false)
	assert.ErrorContains(t, err, "permission denied")

	_, err = b.SystemPrompt("ctx", true)
	assert.ErrorContains(t, err, "permission denied")
}
