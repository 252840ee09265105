// Package chunkfile reads chunk batches from JSON. A batch is either a bare
// array of chunks or an object {"schema_version": ..., "chunks": [...]}.
// Every document is checked against an embedded JSON Schema before it is
// decoded.
package chunkfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"journalrag/internal/domain"
)

//go:embed chunk.schema.json
var schemaJSON string

var schema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("chunkfile: invalid embedded schema: %v", err))
	}
	return s
}

// Batch is a decoded chunk file. SchemaVersion is empty for bare arrays.
type Batch struct {
	SchemaVersion string         `json:"schema_version"`
	Chunks        []domain.Chunk `json:"chunks"`
}

// Decode validates and decodes a chunk batch. Malformed JSON and schema
// violations are validation errors.
func Decode(data []byte) (Batch, error) {
	if err := Validate(data); err != nil {
		return Batch{}, err
	}

	var batch Batch
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &batch.Chunks); err != nil {
			return Batch{}, fmt.Errorf("%w: invalid chunk JSON: %w", domain.ErrValidation, err)
		}
	} else if err := json.Unmarshal(trimmed, &batch); err != nil {
		return Batch{}, fmt.Errorf("%w: invalid chunk JSON: %w", domain.ErrValidation, err)
	}

	for _, c := range batch.Chunks {
		if err := c.Validate(); err != nil {
			return Batch{}, err
		}
	}
	return batch, nil
}

// DecodeReader reads r fully and decodes it.
func DecodeReader(r io.Reader) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read chunks: %w", err)
	}
	return Decode(data)
}

// ReadFile decodes the chunk file at path.
func ReadFile(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	batch, err := Decode(data)
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// Validate checks data against the chunk schema.
func Validate(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: invalid JSON format", domain.ErrValidation)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %w", domain.ErrValidation, err)
	}
	if result.Valid() {
		return nil
	}

	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: chunks failed validation: %s", domain.ErrValidation, strings.Join(details, "; "))
}
