package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, chunking, retrieval and storage.

Settings live in ~/.docrag/config.toml. API keys and connection strings may
also come from the environment or a .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting. Run 'docrag settings keys' for the list of keys.

Examples:
  docrag settings set chunker.chunk_size 800
  docrag settings set retrieval.similarity_threshold 0.4
  docrag settings set storage.backend postgres`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key [provider]",
	Short: "Configure the embedding provider",
	Long: `Select the embedding provider and store its API key.

Providers: openai, openrouter, ollama, lmstudio.
The key is read without echo when stdin is a terminal. Local providers
need no key.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsSetKey,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the settings and ping the embedding provider",
	Args:  cobra.NoArgs,
	RunE:  runSettingsCheck,
}

var setKeyModel string

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

func init() {
	settingsSetKeyCmd.Flags().StringVarP(&setKeyModel, "model", "m", "", "embedding model (default per provider)")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := getSettingsService()
	if err != nil {
		return err
	}

	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	if path := svc.ConfigPath(); path != "" {
		cmd.Printf("Config: %s\n", faint(path))
	}
	cmd.Printf("Owner: %s\n\n", settings.OwnerID)

	e := settings.Embedding
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", e.Provider.Description())
	cmd.Printf("  Model: %s\n", e.ResolvedModel())
	cmd.Printf("  Base URL: %s\n", e.ResolvedBaseURL())
	if e.Provider.RequiresAPIKey() {
		if e.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(e.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	if e.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %g req/s\n", e.RequestsPerSecond)
	}
	status := green("configured")
	if !e.IsConfigured() {
		status = red("not configured")
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	p := settings.Pipeline
	cmd.Println("[Pipeline]")
	cmd.Printf("  Chunk size: %d\n", p.ChunkSize)
	cmd.Printf("  Overlap: %d\n", p.ChunkOverlap)
	cmd.Printf("  Batch size: %d\n", p.BatchSize)
	cmd.Println()

	r := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Match count: %d\n", r.MatchCount)
	cmd.Printf("  Similarity threshold: %g\n", r.SimilarityThreshold)
	cmd.Println()

	st := settings.Storage
	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", st.Backend)
	switch st.Backend {
	case domain.StorageBackendPostgres:
		cmd.Printf("  DSN: %s\n", maskDSN(st.DSN))
	case domain.StorageBackendRedis:
		cmd.Printf("  Address: %s\n", st.RedisAddr)
	}
	if st.BlobDir != "" {
		cmd.Printf("  Blob dir: %s\n", st.BlobDir)
	}
	cmd.Println()

	if err := svc.Validate(); err != nil {
		cmd.Println(yellow("Problems:"))
		for _, line := range strings.Split(err.Error(), "\n") {
			cmd.Printf("  - %s\n", line)
		}
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := getSettingsService()
	if err != nil {
		return err
	}

	if err := svc.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s %s = %s\n", green("✓"), args[0], args[1])
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	svc, err := getSettingsService()
	if err != nil {
		return err
	}

	provider := domain.AIProvider(strings.ToLower(args[0]))
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, args[0])
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Printf("API key for %s (leave empty to use the environment): ", provider.Description())
		apiKey = readPassword()
		cmd.Println()
	}

	if err := svc.SetEmbeddingProvider(provider, setKeyModel, apiKey); err != nil {
		return err
	}
	cmd.Printf("%s Embedding provider set to %s\n", green("✓"), provider.Description())
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	svc, err := getSettingsService()
	if err != nil {
		return err
	}
	for _, k := range svc.Keys() {
		cmd.Println(k)
	}
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	svc, err := getSettingsService()
	if err != nil {
		return err
	}

	if err := svc.Validate(); err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return err
	}

	if checkEmbedding != nil {
		if err := checkEmbedding(cmd.Context(), settings.Embedding); err != nil {
			return err
		}
	}
	cmd.Printf("%s %s is reachable (model %s)\n",
		green("✓"), settings.Embedding.Provider.Description(), settings.Embedding.ResolvedModel())

	// Missing tools only disable their formats, so they warn without failing.
	for _, tool := range toolChecks {
		if err := tool.Check(); err != nil {
			cmd.Printf("%s %s unavailable: %v\n", yellow("!"), tool.Name, err)
			if tool.Help != "" {
				cmd.Printf("%s\n", faint(tool.Help))
			}
			continue
		}
		cmd.Printf("%s %s available\n", green("✓"), tool.Name)
	}
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	reader := bufio.NewReader(stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password in a postgres URL.
func maskDSN(dsn string) string {
	if dsn == "" {
		return "(not set)"
	}
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}

