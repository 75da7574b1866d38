package llm

import "context"

// GenerationConfig carries the decoding parameters a caller pins per prompt.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Client is a minimal text-generation interface to allow pluggable
// providers. Implementations return the decoded text body only; extracting
// structure from it is the normalizer's job.
type Client interface {
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}
