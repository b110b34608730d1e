package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedExtensions(t *testing.T) {
	exts := New().SupportedExtensions()

	assert.ElementsMatch(t, []string{".txt", ".md", ".json", ".csv"}, exts)
}

func TestExtract_Success(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"plain", "This is plain text content."},
		{"markdown", "# Title\n\n- item one\n- item two\n"},
		{"json", `{"key": "value", "n": [1, 2, 3]}`},
		{"csv", "name,age\nalice,30\nbob,25\n"},
		{"unicode", "héllo wörld 日本語"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := New().Extract(ctx, []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.content, text)
		})
	}
}

func TestExtract_StripsBOM(t *testing.T) {
	text, err := New().Extract(context.Background(), []byte("\ufeffhello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte{0xff, 0xfe, 0x41})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_NilContent(t *testing.T) {
	text, err := New().Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.TextExtractor = (*Normaliser)(nil)
}
