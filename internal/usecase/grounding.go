package usecase

import (
	"fmt"
	"strings"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

const sourceSeparator = "\n\n"

// Citation ties a "[Source N]" tag in a grounding context to its match.
type Citation struct {
	Number int          `json:"number"`
	Match  domain.Match `json:"match"`
}

// Format renders the citation as a markdown list entry.
func (c Citation) Format() string {
	m := c.Match
	var b strings.Builder
	fmt.Fprintf(&b, "Source %d:\n", c.Number)
	fmt.Fprintf(&b, "- Journal: %s (chunk %d)\n", m.Journal, m.Index())
	fmt.Fprintf(&b, "- Section: %s\n", m.SectionHeading)
	fmt.Fprintf(&b, "- Document: %s\n", m.SourceDocID)
	fmt.Fprintf(&b, "- Published: %d\n", m.PublishYear)
	fmt.Fprintf(&b, "- Score: %.2f\n", m.Similarity)
	fmt.Fprintf(&b, "- [Link](%s)\n", m.LinkOr("#"))
	return b.String()
}

// GroundingContext is the text handed to the generator plus the sources
// its tags refer to.
type GroundingContext struct {
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations"`
	UsedTokens int        `json:"used_tokens"`
}

// CitationsText renders the "Citations:" block listing every source.
func (g GroundingContext) CitationsText() string {
	var b strings.Builder
	b.WriteString("Citations:\n")
	for _, c := range g.Citations {
		b.WriteString("\n")
		b.WriteString(c.Format())
	}
	return b.String()
}

// ContextBuilder assembles grounding contexts, optionally capped at a
// token budget.
type ContextBuilder struct {
	tokenizer port.Tokenizer
	budget    int // 0 means unlimited
}

// NewContextBuilder creates a builder. A nil tokenizer or a budget <= 0
// disables the cap.
func NewContextBuilder(tokenizer port.Tokenizer, budget int) *ContextBuilder {
	return &ContextBuilder{tokenizer: tokenizer, budget: budget}
}

// Build tags each match "[Source N]" in rank order and joins them with a
// blank line. With a budget, matches stop being added once the next one
// would exceed it; the first match is always kept.
func (b *ContextBuilder) Build(matches []domain.Match) GroundingContext {
	parts := make([]string, 0, len(matches))
	citations := make([]Citation, 0, len(matches))
	used := 0

	for i, m := range matches {
		entry := fmt.Sprintf("[Source %d] %s", i+1, m.Text)

		if b.tokenizer != nil {
			tokens := b.tokenizer.CountTokens(entry)
			if b.budget > 0 && len(parts) > 0 && used+tokens > b.budget {
				break
			}
			used += tokens
		}

		parts = append(parts, entry)
		citations = append(citations, Citation{Number: i + 1, Match: m})
	}

	return GroundingContext{
		Text:       strings.Join(parts, sourceSeparator),
		Citations:  citations,
		UsedTokens: used,
	}
}

// BuildGroundingContext builds an uncapped grounding context.
func BuildGroundingContext(matches []domain.Match) GroundingContext {
	return NewContextBuilder(nil, 0).Build(matches)
}

// DocumentContext concatenates the text of one document's chunks in the
// given order, without source tags.
func DocumentContext(records []domain.ChunkRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.Text
	}
	return strings.Join(parts, sourceSeparator)
}
