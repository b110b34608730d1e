package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// PromptBuilder assembles the system prompt handed to a chat model.
type PromptBuilder struct {
	store driven.PromptStore
}

// NewPromptBuilder creates a builder that reads templates from store.
func NewPromptBuilder(store driven.PromptStore) *PromptBuilder {
	return &PromptBuilder{store: store}
}

// SystemPrompt returns the plain system prompt when ok is false, and the
// excerpt-aware prompt with context substituted otherwise.
func (b *PromptBuilder) SystemPrompt(context string, ok bool) (string, error) {
	if !ok {
		prompt, err := b.store.Load(driven.PromptSystem)
		if err != nil {
			return "", fmt.Errorf("load system prompt: %w", err)
		}
		return prompt, nil
	}

	template, err := b.store.Load(driven.PromptSystemWithContext)
	if err != nil {
		return "", fmt.Errorf("load context prompt: %w", err)
	}

	// A hand-edited template without the placeholder still gets the excerpts.
	if !strings.Contains(template, "%s") {
		logger.Warn("Prompt %q has no %%s placeholder, appending context", driven.PromptSystemWithContext)
		return template + "\n\n" + context, nil
	}

	return fmt.Sprintf(template, context), nil
}
