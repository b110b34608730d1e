// Package cli provides the docrag command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Services holds everything the document, retrieval, watch and mcp
// commands drive.
type Services struct {
	Documents driving.DocumentService
	Retrieval driving.RetrievalService
	Prompts   PromptBuilder

	// OwnerID scopes every command.
	OwnerID string

	// Defaults are the configured retrieval options.
	Defaults domain.RetrieveOptions

	// Close releases stores and providers. May be nil.
	Close func() error
}

// PromptBuilder renders the system prompt for a formatted context.
type PromptBuilder interface {
	SystemPrompt(context string, ok bool) (string, error)
}

// SettingsBuilder opens the settings service for a config directory.
// An empty directory means the default location.
type SettingsBuilder func(configDir string) (driving.SettingsService, error)

// ServicesBuilder wires stores, providers and services from settings.
type ServicesBuilder func(ctx context.Context, configDir string, settings *domain.AppSettings) (*Services, error)

// EmbeddingChecker verifies that the configured embedding provider answers.
type EmbeddingChecker func(ctx context.Context, settings domain.EmbeddingSettings) error

// ToolCheck reports whether an optional external tool is installed.
// Help is shown when Check fails.
type ToolCheck struct {
	Name  string
	Check func() error
	Help  string
}

var (
	version = "dev"

	verbose   bool
	configDir string

	buildSettings  SettingsBuilder
	buildServices  ServicesBuilder
	checkEmbedding EmbeddingChecker
	toolChecks     []ToolCheck

	settingsService driving.SettingsService
	services        *Services
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Retrieval-augmented context from your documents",
	Long: `docrag ingests documents (text, markdown, JSON, CSV and PDF), splits them
into overlapping chunks, embeds them and stores the vectors. Queries return
the most similar excerpts, formatted as context for a language model.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.docrag)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBuilders registers how the CLI opens settings and wires services.
func SetBuilders(settings SettingsBuilder, app ServicesBuilder) {
	buildSettings = settings
	buildServices = app
}

// SetEmbeddingCheck registers the check run by 'settings check'.
func SetEmbeddingCheck(check EmbeddingChecker) {
	checkEmbedding = check
}

// SetToolChecks registers optional tools reported by 'settings check'.
func SetToolChecks(checks ...ToolCheck) {
	toolChecks = checks
}

// Execute runs the root command and releases any opened services.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func getSettingsService() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	if buildSettings == nil {
		return nil, errors.New("settings service not configured")
	}
	s, err := buildSettings(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	settingsService = s
	return s, nil
}

func getServices(ctx context.Context) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if buildServices == nil {
		return nil, errors.New("services not configured")
	}

	settingsSvc, err := getSettingsService()
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	svc, err := buildServices(ctx, configDir, settings)
	if err != nil {
		return nil, err
	}
	services = svc
	return svc, nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("closing services: %v", err)
	}
	services = nil
}
