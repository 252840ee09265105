package domain

import (
	"fmt"
	"strings"
)

// Chunk is one ingestible unit of an academic document.
type Chunk struct {
	ID             string   `json:"id"`
	SourceDocID    string   `json:"source_doc_id"`
	ChunkIndex     int      `json:"chunk_index"`
	SectionHeading string   `json:"section_heading"`
	Journal        string   `json:"journal"`
	PublishYear    int      `json:"publish_year"`
	UsageCount     int      `json:"usage_count"`
	Attributes     []string `json:"attributes"`
	Link           *string  `json:"link,omitempty"`
	DOI            *string  `json:"doi,omitempty"`
	Text           string   `json:"text"`
}

// Validate reports whether the chunk can be ingested and later decoded
// back to the same values.
func (c Chunk) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: chunk id is empty", ErrValidation)
	case c.SourceDocID == "":
		return fmt.Errorf("%w: chunk %q has no source_doc_id", ErrValidation, c.ID)
	case c.ChunkIndex < 0:
		return fmt.Errorf("%w: chunk %q has negative chunk_index %d", ErrValidation, c.ID, c.ChunkIndex)
	case c.Text == "":
		return fmt.Errorf("%w: chunk %q has empty text", ErrValidation, c.ID)
	}
	for i, attr := range c.Attributes {
		if attr == "" {
			return fmt.Errorf("%w: chunk %q attribute %d is empty", ErrValidation, c.ID, i)
		}
		if strings.Contains(attr, AttributesDelimiter) {
			return fmt.Errorf("%w: chunk %q attribute %q contains %q", ErrValidation, c.ID, attr, AttributesDelimiter)
		}
	}
	return nil
}

// SourceDocument carries the document-level fields shared by every chunk
// cut from one document.
type SourceDocument struct {
	ID          string
	Journal     string
	PublishYear int
	Attributes  []string
	Link        *string
	DOI         *string
}

// ChunkRecord is a chunk as read back from the store.
type ChunkRecord struct {
	ID             string   `json:"id"`
	SourceDocID    string   `json:"source_doc_id"`
	ChunkIndex     *int     `json:"chunk_index,omitempty"` // nil when the stored record has none
	SectionHeading string   `json:"section_heading"`
	Journal        string   `json:"journal"`
	PublishYear    int      `json:"publish_year"`
	UsageCount     int      `json:"usage_count"`
	Attributes     []string `json:"attributes"`
	Link           *string  `json:"link,omitempty"`
	DOI            *string  `json:"doi,omitempty"`
	SchemaVersion  string   `json:"schema_version,omitempty"`
	Text           string   `json:"text"`
}

// Match is a search hit with its rounded similarity score.
type Match struct {
	ChunkRecord
	Similarity float64 `json:"similarity_score"`
}

// Index returns the chunk index, 0 when absent.
func (r ChunkRecord) Index() int {
	if r.ChunkIndex == nil {
		return 0
	}
	return *r.ChunkIndex
}

// LinkOr returns the link or fallback when absent.
func (r ChunkRecord) LinkOr(fallback string) string {
	if r.Link == nil || *r.Link == "" {
		return fallback
	}
	return *r.Link
}
