package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"journalrag/internal/port"
)

const (
	openAIBaseURL = "https://api.openai.com/v1/"
	ollamaBaseURL = "http://localhost:11434/v1/"
)

// OpenAIGenerator calls an OpenAI compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
}

var _ port.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator reads the API key from apiKeyEnv. An empty baseURL
// targets api.openai.com.
func NewOpenAIGenerator(apiKeyEnv, model, baseURL string, temperature float64, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return newGenerator(apiKey, model, baseURL, temperature, opts), nil
}

// NewOllamaGenerator targets a local Ollama server's OpenAI compatible API.
func NewOllamaGenerator(model, baseURL string, temperature float64, opts ...option.RequestOption) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	return newGenerator("ollama", model, baseURL, temperature, opts)
}

func newGenerator(apiKey, model, baseURL string, temperature float64, opts []option.RequestOption) *OpenAIGenerator {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(append(base, opts...)...),
		model:       model,
		temperature: temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateWithSystem(ctx, "", prompt)
}

func (g *OpenAIGenerator) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

// MockGenerator answers without a model. It returns the first line of the
// prompt and remembers every prompt it was given.
type MockGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateWithSystem(ctx, "", prompt)
}

func (g *MockGenerator) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, userPrompt)
	g.mu.Unlock()

	first, _, _ := strings.Cut(strings.TrimSpace(userPrompt), "\n")
	return "mock response to: " + first, nil
}

// Prompts returns the prompts received so far.
func (g *MockGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *MockGenerator) ModelName() string {
	return "mock"
}
