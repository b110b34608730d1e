package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/adapters/driving/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files as they appear in a directory",
	Long: `Watches a directory and processes every new or rewritten file with a
supported extension, one at a time. A new file is uploaded as a document; a
rewritten one replaces its document's content, so its chunks are swapped
rather than duplicated. Embedding and storage failures are retried twice.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationP("settle", "s", watch.DefaultSettle, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	settle, err := cmd.Flags().GetDuration("settle")
	if err != nil {
		return err
	}

	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	w := watch.New(args[0], svc.OwnerID, svc.Documents,
		watch.WithSettle(settle),
		watch.WithResultHandler(func(r watch.Result) {
			if r.Err != nil {
				cmd.PrintErrf("%s %s: %v\n", red("✗"), r.Path, r.Err)
				return
			}
			cmd.Printf("%s %s: %d chunks\n", green("✓"), r.Path, r.Document.ChunkCount)
		}),
	)

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Dir())
	return w.Run(cmd.Context())
}
