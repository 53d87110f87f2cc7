package llmagent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider drives completions through Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider dials Gemini's API backend authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, model string, req Request) (Response, error) {
	var system string
	var prompt strings.Builder
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	result, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt.String()), cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini completion: %w", err)
	}

	var usage Usage
	if result.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return Response{Content: result.Text(), Usage: usage}, nil
}
