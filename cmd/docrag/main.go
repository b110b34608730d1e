// Command docrag ingests documents and serves retrieval-augmented context.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/docrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers/pdf"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("reading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBuilders(openSettings, buildServices)
	cli.SetEmbeddingCheck(ai.ValidateEmbeddingConfig)
	cli.SetToolChecks(cli.ToolCheck{
		Name:  "PDF extraction (pdftotext)",
		Check: pdf.CheckAvailable,
		Help:  pdf.InstallInstructions(),
	})

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
