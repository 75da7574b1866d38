package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds minimal runtime configuration. Extend as needed.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Knowledge-base upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" (production database)
	DBURL         string `env:"DB_URL"`

	// Queue (knowledge-base ingestion tasks)
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"`
	QueueURL      string `env:"QUEUE_URL"`

	// Cache (chat responses); falls back to noop when unset
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"300"` // seconds

	// Model providers. Summaries go to Gemini, plans and chat to OpenAI.
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	PlanModel    string `env:"PLAN_MODEL" envDefault:"gpt-4o-mini"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
	SummaryModel string `env:"SUMMARY_MODEL" envDefault:"gemini-1.5-flash"`

	// Generation parameters
	SummaryMaxTokens int `env:"SUMMARY_MAX_TOKENS" envDefault:"350"`
	PlanMaxTokens    int `env:"PLAN_MAX_TOKENS" envDefault:"2048"`

	// Embeddings & retrieval
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	RetrievalTopK  int    `env:"RETRIEVAL_TOP_K" envDefault:"3"`

	// Normalizer compatibility. When true, a model response that parses to an
	// object without a "plan" key is rejected instead of degrading to an
	// empty plan.
	StrictPlanShape bool `env:"STRICT_PLAN_SHAPE" envDefault:"false"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
