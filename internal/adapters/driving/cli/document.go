package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage uploaded documents",
	Long:    `Upload, list, inspect, replace, process and delete documents.`,
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents",
	Long: `Stores each file and creates a pending document.
Supported types: .txt .md .json .csv .pdf (up to 10 MiB).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentUpload,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document, its chunks and its stored file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentReplaceCmd = &cobra.Command{
	Use:   "replace [doc-id] [file]",
	Short: "Replace a document's content with a new version of the file",
	Long: `Overwrites the stored file and resets the document to pending. Its
chunks are swapped out when it is next processed.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentReplace,
}

var documentProcessCmd = &cobra.Command{
	Use:   "process [doc-id]",
	Short: "Extract, chunk and embed a document",
	Long: `Runs the ingestion pipeline for one document. Reprocessing replaces the
chunks from any earlier run.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentProcess,
}

var (
	uploadProcess  bool
	replaceProcess bool
	listJSON       bool
)

// documentView is the JSON shape of a document.
type documentView struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func init() {
	documentUploadCmd.Flags().BoolVarP(&uploadProcess, "process", "p", false, "process each file after upload")
	documentReplaceCmd.Flags().BoolVarP(&replaceProcess, "process", "p", false, "process the document after replacing it")
	documentListCmd.Flags().BoolVar(&listJSON, "json", false, "output documents as JSON")

	documentCmd.AddCommand(documentUploadCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentReplaceCmd)
	documentCmd.AddCommand(documentProcessCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	var failed int
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("%s %s: %v\n", red("✗"), path, err)
			failed++
			continue
		}

		doc, err := svc.Documents.Upload(cmd.Context(), svc.OwnerID, filepath.Base(path), content)
		if err != nil {
			cmd.PrintErrf("%s %s: %v\n", red("✗"), path, err)
			failed++
			continue
		}
		cmd.Printf("%s %s  %s\n", green("✓"), doc.ID, doc.Filename)

		if uploadProcess {
			if err := processAndReport(cmd, svc, doc.ID); err != nil {
				cmd.PrintErrf("  %v\n", err)
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	docs, err := svc.Documents.List(cmd.Context(), svc.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if listJSON {
		views := make([]documentView, len(docs))
		for i := range docs {
			views[i] = toDocumentView(&docs[i])
		}
		return printJSON(cmd, views)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %-10s %4d chunks  %s\n",
			docs[i].ID, colourStatus(docs[i].Status), docs[i].ChunkCount, truncate(docs[i].Filename, 48))
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	doc, err := svc.Documents.Get(cmd.Context(), svc.OwnerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Status:   %s\n", colourStatus(doc.Status))
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Stored:   %s\n", doc.StoragePath)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeLayout))
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", red(doc.ErrorMessage))
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	if err := svc.Documents.Delete(cmd.Context(), svc.OwnerID, args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document: %s\n", args[0])
	return nil
}

func runDocumentReplace(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	content, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	doc, err := svc.Documents.Replace(cmd.Context(), svc.OwnerID, args[0], content)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	cmd.Printf("%s %s  %s %s\n", green("✓"), doc.ID, doc.Filename, faint("(replaced)"))

	if replaceProcess {
		return processAndReport(cmd, svc, doc.ID)
	}
	return nil
}

func runDocumentProcess(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}
	return processAndReport(cmd, svc, args[0])
}

func processAndReport(cmd *cobra.Command, svc *Services, docID string) error {
	start := time.Now()
	doc, err := svc.Documents.Process(cmd.Context(), svc.OwnerID, docID)
	if err != nil {
		if doc != nil {
			cmd.PrintErrf("  %s %s: %s\n", red("failed"), doc.Filename, doc.ErrorMessage)
		}
		if domain.IsRetryable(err) {
			cmd.PrintErrf("  %s\n", faint("This may be temporary. Retry with: docrag document process "+docID))
		}
		return fmt.Errorf("failed to process document: %w", err)
	}

	cmd.Printf("  %s %s: %d chunks %s\n",
		colourStatus(doc.Status), doc.Filename, doc.ChunkCount,
		faint(fmt.Sprintf("(%s)", time.Since(start).Round(time.Millisecond))))
	return nil
}

func toDocumentView(doc *domain.Document) documentView {
	return documentView{
		ID:         doc.ID,
		Filename:   doc.Filename,
		Status:     doc.Status.String(),
		ChunkCount: doc.ChunkCount,
		Error:      doc.ErrorMessage,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}
