package pdftext

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalrag/internal/domain"
)

func TestExtractFile_Missing(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestExtractFile_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text, not a pdf"), 0o644))

	_, err := ExtractFile(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
}

func TestExtract_Reader(t *testing.T) {
	_, err := Extract(strings.NewReader("%PDF-1.4 truncated"))
	assert.Error(t, err)
}
