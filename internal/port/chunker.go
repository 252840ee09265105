package port

import "journalrag/internal/domain"

// Chunker splits the plain text of one document into ordered chunks.
type Chunker interface {
	Chunk(doc domain.SourceDocument, content string) ([]domain.Chunk, error)
}
