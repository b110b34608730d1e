package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driving/watch"
)

func TestWatchCmd_Flags(t *testing.T) {
	flag := watchCmd.Flags().Lookup("settle")
	require.NotNil(t, flag)
	assert.Equal(t, watch.DefaultSettle.String(), flag.DefValue)
}

func TestWatchCmd_MissingDirectory(t *testing.T) {
	setupTestServices(t)

	_, _, err := execute(t, "watch", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}
