package usecase

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

//go:embed templates/*.tmpl
var promptTemplates embed.FS

var prompts = template.Must(template.ParseFS(promptTemplates, "templates/*.tmpl"))

// NoContextAnswer is returned when no chunk clears the score threshold.
const NoContextAnswer = "No relevant information found."

// Answer is a generated answer with the sources it was grounded on.
type Answer struct {
	Question  string         `json:"question"`
	Text      string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Matches   []domain.Match `json:"matches"`
	NoContext bool           `json:"no_context"`
}

// Assistant turns retrieved chunks into generated answers, summaries and
// comparisons.
type Assistant struct {
	retriever port.Retriever
	generator port.Generator
	builder   *ContextBuilder
	logger    *slog.Logger
}

// NewAssistant creates a new assistant. A nil builder means an uncapped
// grounding context.
func NewAssistant(retriever port.Retriever, generator port.Generator, builder *ContextBuilder, logger *slog.Logger) *Assistant {
	if builder == nil {
		builder = NewContextBuilder(nil, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		retriever: retriever,
		generator: generator,
		builder:   builder,
		logger:    logger,
	}
}

// Answer searches for context and asks the generator to answer with
// inline [Source N] citations. The generator is not called when nothing
// relevant is found.
func (a *Assistant) Answer(ctx context.Context, question string, k int, minScore float64) (Answer, error) {
	matches, err := a.retriever.Search(ctx, question, k, minScore)
	if err != nil {
		return Answer{}, err
	}

	if len(matches) == 0 {
		return Answer{
			Question:  question,
			Text:      NoContextAnswer,
			Citations: []Citation{},
			Matches:   matches,
			NoContext: true,
		}, nil
	}

	grounding := a.builder.Build(matches)

	prompt, err := render("answer.tmpl", map[string]any{
		"Context":  grounding.Text,
		"Question": question,
	})
	if err != nil {
		return Answer{}, err
	}

	text, err := a.generate(ctx, "", prompt)
	if err != nil {
		return Answer{}, err
	}

	a.logger.Info("answered question", "sources", len(grounding.Citations), "used_tokens", grounding.UsedTokens, "model", a.generator.ModelName())
	return Answer{
		Question:  question,
		Text:      text,
		Citations: grounding.Citations,
		Matches:   matches,
	}, nil
}

// Summarize generates a summary of one document from all of its chunks.
func (a *Assistant) Summarize(ctx context.Context, docID string) (string, error) {
	records, err := a.retriever.ByDocument(ctx, docID)
	if err != nil {
		return "", err
	}

	prompt, err := render("summary.tmpl", map[string]any{
		"DocID":   docID,
		"Context": DocumentContext(records),
	})
	if err != nil {
		return "", err
	}

	return a.generate(ctx, systemPrompt(), prompt)
}

// Compare generates a comparison of two documents.
func (a *Assistant) Compare(ctx context.Context, docA, docB string) (string, error) {
	recordsA, err := a.retriever.ByDocument(ctx, docA)
	if err != nil {
		return "", err
	}
	recordsB, err := a.retriever.ByDocument(ctx, docB)
	if err != nil {
		return "", err
	}

	prompt, err := render("compare.tmpl", map[string]any{
		"DocA":     docA,
		"ContextA": DocumentContext(recordsA),
		"DocB":     docB,
		"ContextB": DocumentContext(recordsB),
	})
	if err != nil {
		return "", err
	}

	return a.generate(ctx, systemPrompt(), prompt)
}

func (a *Assistant) generate(ctx context.Context, system, prompt string) (string, error) {
	var (
		text string
		err  error
	)
	if system == "" {
		text, err = a.generator.Generate(ctx, prompt)
	} else {
		text, err = a.generator.GenerateWithSystem(ctx, system, prompt)
	}
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return strings.TrimSpace(text), nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func systemPrompt() string {
	s, _ := render("system.tmpl", nil)
	return strings.TrimSpace(s)
}
