package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

const defaultMaxTokens = 300

// ParagraphChunker splits extracted document text into chunks of whole
// paragraphs. Short title-like paragraphs are treated as section headings:
// they start a new chunk and label the chunks after them.
type ParagraphChunker struct {
	maxTokens int
	overlap   int
	tokenizer port.Tokenizer
}

var _ port.Chunker = (*ParagraphChunker)(nil)

func NewParagraphChunker(maxTokens, overlap int, tokenizer port.Tokenizer) *ParagraphChunker {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ParagraphChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

// Chunk returns chunks with chunk_index 0..n-1 and ids "<doc id>-<index>".
func (c *ParagraphChunker) Chunk(doc domain.SourceDocument, content string) ([]domain.Chunk, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is empty", domain.ErrValidation)
	}

	paras := c.paragraphs(content)
	var chunks []domain.Chunk
	heading := ""
	start := 0

	for start < len(paras) {
		if paras[start].heading {
			heading = paras[start].text
			start++
			continue
		}

		end := start
		currentTokens := 0
		for end < len(paras) && !paras[end].heading {
			tokens := c.tokenizer.CountTokens(paras[end].text)
			if currentTokens > 0 && currentTokens+tokens > c.maxTokens {
				break
			}
			currentTokens += tokens
			end++
		}

		texts := make([]string, 0, end-start)
		for _, p := range paras[start:end] {
			texts = append(texts, p.text)
		}
		chunks = append(chunks, newChunk(doc, len(chunks), heading, strings.Join(texts, "\n\n")))

		if end >= len(paras) || paras[end].heading {
			start = end
			continue
		}
		start = end - c.overlapParagraphs(paras, start, end)
	}

	return chunks, nil
}

type paragraph struct {
	text    string
	heading bool
}

// paragraphs splits content on blank lines, joins hard-wrapped lines and
// breaks paragraphs larger than maxTokens at word boundaries. Paragraphs
// without a letter (page numbers, rules) are dropped.
func (c *ParagraphChunker) paragraphs(content string) []paragraph {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var out []paragraph
	for _, block := range strings.Split(content, "\n\n") {
		text := strings.Join(strings.Fields(block), " ")
		if !hasLetter(text) {
			continue
		}
		if c.isHeading(text) {
			out = append(out, paragraph{text: text, heading: true})
			continue
		}
		for _, piece := range c.split(text) {
			out = append(out, paragraph{text: piece})
		}
	}
	return out
}

func (c *ParagraphChunker) split(text string) []string {
	if c.tokenizer.CountTokens(text) <= c.maxTokens {
		return []string{text}
	}

	words := strings.Fields(text)
	var pieces []string
	start := 0
	for start < len(words) {
		end := start + 1
		for end < len(words) && c.tokenizer.CountTokens(strings.Join(words[start:end+1], " ")) <= c.maxTokens {
			end++
		}
		pieces = append(pieces, strings.Join(words[start:end], " "))
		start = end
	}
	return pieces
}

// overlapParagraphs returns how many trailing paragraphs of [start, end)
// to repeat at the head of the next chunk. At least one paragraph is
// always left behind so the chunker makes progress.
func (c *ParagraphChunker) overlapParagraphs(paras []paragraph, start, end int) int {
	if c.overlap == 0 {
		return 0
	}

	n := 0
	tokens := 0
	for i := end - 1; i > start && tokens < c.overlap; i-- {
		tokens += c.tokenizer.CountTokens(paras[i].text)
		n++
	}
	return n
}

func newChunk(doc domain.SourceDocument, index int, heading, text string) domain.Chunk {
	return domain.Chunk{
		ID:             fmt.Sprintf("%s-%d", doc.ID, index),
		SourceDocID:    doc.ID,
		ChunkIndex:     index,
		SectionHeading: heading,
		Journal:        doc.Journal,
		PublishYear:    doc.PublishYear,
		Attributes:     append([]string(nil), doc.Attributes...),
		Link:           doc.Link,
		DOI:            doc.DOI,
		Text:           text,
	}
}

// isHeading matches short title-like lines such as "Methods" or
// "2.1 Study design".
func (c *ParagraphChunker) isHeading(p string) bool {
	words := strings.Fields(p)
	if len(words) == 0 || len(words) > 10 {
		return false
	}
	if strings.ContainsAny(p[len(p)-1:], ".,;:?!)\"") {
		return false
	}
	first := []rune(p)[0]
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	return len(c.tokenizer.Tokenize(p)) > 0
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
