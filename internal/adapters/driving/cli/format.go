package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func colourStatus(status domain.DocumentStatus) string {
	switch status {
	case domain.DocumentStatusCompleted:
		return green(status.String())
	case domain.DocumentStatusFailed:
		return red(status.String())
	case domain.DocumentStatusProcessing:
		return yellow(status.String())
	default:
		return status.String()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
