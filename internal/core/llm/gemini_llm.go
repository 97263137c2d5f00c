package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

var _ core.LLMProvider = (*GeminiClient)(nil)

// GeminiClient wraps the generative-ai-go SDK. When constructed
// without an API key the client stays nil and every Generate call
// returns core.ErrNotConfigured without touching the network.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if apiKey == "" {
		return &GeminiClient{modelName: modelName}, nil
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{client: cl, modelName: modelName}, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate sends prompt to the configured model and returns the
// response text plus the model identifier.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, string, error) {
	if g.client == nil {
		return "", "", core.ErrNotConfigured
	}

	m := g.client.GenerativeModel(g.modelName)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", "", errors.New("empty response from gemini")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), g.modelName, nil
}
