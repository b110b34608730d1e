package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	name string
	args []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, execRunner{}, normaliser.runner)
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".pdf"}, New().SupportedExtensions())
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.TextExtractor = (*Normaliser)(nil)
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Error(t, ErrPDFToolNotFound)
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// TestNewWithRunner verifies the mock runner injection works.
func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	normaliser := NewWithRunner(runner)
	require.NotNil(t, normaliser)
	assert.Equal(t, runner, normaliser.runner)
}

func TestExtract_JoinsPages(t *testing.T) {
	runner := &mockRunner{
		output: []byte("Page one text.\n\fPage two text.\n\f"),
	}

	text, err := NewWithRunner(runner).Extract(context.Background(), []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "Page one text.\n\nPage two text.", text)

	assert.Equal(t, "pdftotext", runner.name)
	require.Len(t, runner.args, 4)
	assert.Equal(t, "-", runner.args[3])
}

func TestExtract_SkipsBlankPages(t *testing.T) {
	runner := &mockRunner{
		output: []byte("Intro\f  \n \fBody\f\fEnd"),
	}

	text, err := NewWithRunner(runner).Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Intro\n\nBody\n\nEnd", text)
}

func TestExtract_NoText(t *testing.T) {
	runner := &mockRunner{output: []byte("\f\f\f")}

	text, err := NewWithRunner(runner).Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("exit status 1")}

	_, err := NewWithRunner(runner).Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext")
}

func TestExtract_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := NewWithRunner(runner).Extract(context.Background(), []byte("%PDF"))
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.Contains(t, err.Error(), "apt install poppler-utils")
}

// Integration test - only runs if pdftotext is available.
func TestExtract_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}

	// A corrupt PDF must surface as an error, not as empty text.
	_, err := New().Extract(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)
}
