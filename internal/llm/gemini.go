package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey string
	model  string
}

const defaultGeminiTimeout = 60 * time.Second

// NewGeminiClient returns a Gemini-backed client. The SDK client itself is
// created per call and closed with it.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model)}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", fmt.Errorf("nil gemini client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultGeminiTimeout)
	defer cancel()

	cl, err := genai.NewClient(reqCtx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.model)
	if cfg.Temperature > 0 {
		m.GenerationConfig.Temperature = ptrFloat32(float32(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		m.GenerationConfig.TopP = ptrFloat32(float32(cfg.TopP))
	}
	if cfg.MaxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = ptrInt32(int32(cfg.MaxTokens))
	}

	resp, err := m.GenerateContent(reqCtx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	text := flattenCandidates(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: no text candidates returned")
	}
	return text, nil
}

// flattenCandidates concatenates the text parts of the first candidate.
func flattenCandidates(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
