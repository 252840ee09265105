// Package pdftext extracts plain text from PDF files.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"journalrag/internal/domain"
)

// ExtractFile returns the plain text of the PDF at path. A PDF with no
// extractable text is a validation error.
func ExtractFile(path string) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: unreadable pdf %s: %v", domain.ErrValidation, path, r)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open pdf %s: %w", domain.ErrValidation, path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from pdf %s", domain.ErrValidation, path)
	}
	return text, nil
}

// Extract copies r to a temporary file and extracts its text, since the
// pdf reader works with file paths.
func Extract(r io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "journalrag-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("failed to save temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to save temp pdf: %w", err)
	}

	return ExtractFile(tmp.Name())
}
