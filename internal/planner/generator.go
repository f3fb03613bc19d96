package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"github.com/fyrsmithlabs/questd/internal/config"
)

// Generator turns a prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewGenerator builds the generator for cfg.Provider. It returns a nil
// Generator, and no error, when the provider has no credential; the planner
// then reports itself misconfigured per call.
func NewGenerator(ctx context.Context, cfg config.PlannerConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		if !cfg.APIKey.IsSet() {
			return nil, nil
		}
		return NewGeminiGenerator(ctx, cfg.APIKey.Value(), cfg.Model)
	case config.ProviderOpenAI:
		if !cfg.APIKey.IsSet() && cfg.BaseURL == "" {
			return nil, nil
		}
		return NewOpenAIGenerator(cfg.APIKey.Value(), cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported planner provider %q", cfg.Provider)
	}
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini client for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends prompt as a single user turn.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini generate: empty response")
	}
	return resp.Text(), nil
}

// OpenAIGenerator calls any OpenAI-compatible chat endpoint through
// langchaingo.
type OpenAIGenerator struct {
	llm llms.Model
}

// NewOpenAIGenerator creates an OpenAI-compatible client. baseURL may be
// empty for the public API.
func NewOpenAIGenerator(token, model, baseURL string) (*OpenAIGenerator, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	} else {
		// langchaingo refuses an empty token even for local servers.
		opts = append(opts, openai.WithToken("unused"))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAIGenerator{llm: llm}, nil
}

// Generate sends prompt as a single completion request.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	return out, nil
}
