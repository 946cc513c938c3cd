package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ScriptWriter/internal/config"
	"ScriptWriter/internal/ports"
)

// GeminiClient implements ports.TextGenerator on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ ports.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = config.Default().Generation.Gemini.Model
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Name identifies the backend inside the registry.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Generate sends a single-turn prompt; JSON requests set the response MIME type.
func (g *GeminiClient) Generate(ctx context.Context, in ports.GenerateRequest) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrNotConfigured
	}

	cfg := &genai.GenerateContentConfig{}
	if in.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(in.Temperature))
	}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	}
	if in.Format.JSON() {
		cfg.ResponseMIMEType = "application/json"
	}
	if strings.TrimSpace(in.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(in.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
