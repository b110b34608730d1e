package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

var (
	retrieveLimit     int
	retrieveThreshold float64
	retrieveJSON      bool
	retrievePrompt    bool
	retrieveContext   bool
)

var retrieveCmd = &cobra.Command{
	Use:     "retrieve [query]",
	Aliases: []string{"search"},
	Short:   "Find the excerpts most relevant to a query",
	Long: `Embeds the query and returns the most similar chunks from your documents.
Chunks below the similarity threshold are dropped. Retrieval failures are
logged and yield no results.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

type chunkView struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename,omitempty"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "maximum number of excerpts (default from settings)")
	retrieveCmd.Flags().Float64VarP(&retrieveThreshold, "threshold", "t", 0, "minimum similarity (default from settings)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output excerpts as JSON")
	retrieveCmd.Flags().BoolVar(&retrieveContext, "context", false, "print the formatted context block")
	retrieveCmd.Flags().BoolVar(&retrievePrompt, "prompt", false, "print the full system prompt")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	opts := svc.Defaults
	if retrieveLimit > 0 {
		opts.MatchCount = retrieveLimit
	}
	if cmd.Flags().Changed("threshold") {
		opts.SimilarityThreshold = retrieveThreshold
	}

	chunks := svc.Retrieval.Retrieve(cmd.Context(), args[0], svc.OwnerID, opts.WithDefaults())

	switch {
	case retrievePrompt:
		if svc.Prompts == nil {
			return errors.New("prompt templates not configured")
		}
		formatted, ok := svc.Retrieval.FormatContext(chunks)
		prompt, err := svc.Prompts.SystemPrompt(formatted, ok)
		if err != nil {
			return fmt.Errorf("failed to build prompt: %w", err)
		}
		cmd.Println(prompt)
		return nil
	case retrieveContext:
		if formatted, ok := svc.Retrieval.FormatContext(chunks); ok {
			cmd.Println(formatted)
		}
		return nil
	case retrieveJSON:
		return printJSON(cmd, toChunkViews(chunks))
	}

	if len(chunks) == 0 {
		cmd.Println("No relevant excerpts found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, c := range chunks {
		source := c.Filename()
		if source == "" {
			source = c.DocumentID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, source, c.Similarity)
		cmd.Printf("      %s\n\n", faint(truncate(c.Content, 200)))
	}
	return nil
}

func toChunkViews(chunks []domain.RetrievedChunk) []chunkView {
	views := make([]chunkView, len(chunks))
	for i, c := range chunks {
		views[i] = chunkView{
			DocumentID: c.DocumentID,
			Filename:   c.Filename(),
			Similarity: c.Similarity,
			Content:    c.Content,
		}
	}
	return views
}
