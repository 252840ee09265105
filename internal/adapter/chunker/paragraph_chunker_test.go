package chunker

import (
	"errors"
	"strings"
	"testing"

	"journalrag/internal/adapter/analyzer"
	"journalrag/internal/domain"
)

func testDoc() domain.SourceDocument {
	link := "https://example.org/d1"
	return domain.SourceDocument{
		ID:          "d1",
		Journal:     "Plant Science",
		PublishYear: 2021,
		Attributes:  []string{"crops", "genetics"},
		Link:        &link,
	}
}

func TestParagraphChunkerHeadings(t *testing.T) {
	chunker := NewParagraphChunker(300, 0, analyzer.NewTokenizer())

	content := "Abstract\n\nGene editing changes crops.\n\nMethods\n\nWe sampled 40 fields in 2019.\nResults were stable."

	chunks, err := chunker.Chunk(testDoc(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}

	if chunks[0].ID != "d1-0" || chunks[1].ID != "d1-1" {
		t.Errorf("unexpected ids %q %q", chunks[0].ID, chunks[1].ID)
	}
	if chunks[0].SectionHeading != "Abstract" || chunks[1].SectionHeading != "Methods" {
		t.Errorf("unexpected headings %q %q", chunks[0].SectionHeading, chunks[1].SectionHeading)
	}
	if chunks[1].Text != "We sampled 40 fields in 2019. Results were stable." {
		t.Errorf("hard-wrapped lines should be joined, got %q", chunks[1].Text)
	}

	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, chunk.ChunkIndex)
		}
		if chunk.SourceDocID != "d1" || chunk.Journal != "Plant Science" || chunk.PublishYear != 2021 {
			t.Errorf("document fields not carried: %+v", chunk)
		}
		if chunk.Link == nil || *chunk.Link != "https://example.org/d1" {
			t.Errorf("link not carried: %v", chunk.Link)
		}
		if err := chunk.Validate(); err != nil {
			t.Errorf("chunk %d invalid: %v", i, err)
		}
	}
}

func TestParagraphChunkerPacking(t *testing.T) {
	// each paragraph is 4 words, about 5 tokens
	content := strings.Join([]string{
		"alpha beta gamma one.",
		"alpha beta gamma two.",
		"alpha beta gamma three.",
	}, "\n\n")

	chunks, err := NewParagraphChunker(10, 0, analyzer.NewTokenizer()).Chunk(testDoc(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "alpha beta gamma one.\n\nalpha beta gamma two." {
		t.Errorf("unexpected first chunk %q", chunks[0].Text)
	}
	if chunks[1].Text != "alpha beta gamma three." {
		t.Errorf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestParagraphChunkerOverlap(t *testing.T) {
	content := strings.Join([]string{
		"alpha beta gamma one.",
		"alpha beta gamma two.",
		"alpha beta gamma three.",
	}, "\n\n")

	chunks, err := NewParagraphChunker(10, 1, analyzer.NewTokenizer()).Chunk(testDoc(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Text, "alpha beta gamma two.") {
		t.Errorf("second chunk should repeat the last paragraph, got %q", chunks[1].Text)
	}
}

func TestParagraphChunkerOversizedParagraph(t *testing.T) {
	content := "lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor."

	chunks, err := NewParagraphChunker(5, 0, analyzer.NewTokenizer()).Chunk(testDoc(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	var words []string
	for _, chunk := range chunks {
		if chunk.SectionHeading != "" {
			t.Errorf("split pieces are not headings: %q", chunk.SectionHeading)
		}
		words = append(words, strings.Fields(chunk.Text)...)
	}
	if strings.Join(words, " ") != content {
		t.Errorf("pieces should cover the paragraph in order")
	}
}

func TestParagraphChunkerDropsNonText(t *testing.T) {
	chunks, err := NewParagraphChunker(50, 0, analyzer.NewTokenizer()).Chunk(testDoc(), "\n\n12\n\n---\n\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestParagraphChunkerRequiresDocID(t *testing.T) {
	_, err := NewParagraphChunker(50, 0, analyzer.NewTokenizer()).Chunk(domain.SourceDocument{}, "Some text.")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
