package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptSystem is the system prompt used when no documents matched.
	// It has no placeholders.
	PromptSystem = "system"

	// PromptSystemWithContext is the system prompt used with retrieved excerpts.
	// It expects a single %s placeholder for the formatted context.
	PromptSystemWithContext = "system_with_context"
)
