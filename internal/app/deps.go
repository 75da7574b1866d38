package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"care-planner/internal/cache"
	"care-planner/internal/config"
	"care-planner/internal/embeddings"
	"care-planner/internal/llm"
	"care-planner/internal/logger"
	"care-planner/internal/planner"
	"care-planner/internal/queue"
	"care-planner/internal/retrieval"
	"care-planner/internal/store"
)

// Deps bundles the runtime dependencies of the API server.
type Deps struct {
	Config  config.Config
	Log     *slog.Logger
	Store   store.Store
	Queue   queue.Queue
	Cache   cache.Cache
	Planner *planner.Planner
}

// WorkerDeps bundles the runtime dependencies of the ingestion worker.
type WorkerDeps struct {
	Config   config.Config
	Log      *slog.Logger
	Store    store.Store
	Queue    queue.Queue
	Embedder embeddings.Embedder
}

// Build loads env, config, and the server's components.
func Build(service string) (Deps, error) {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()
	log := logger.New(service, cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	ch := buildCache(cfg, log)

	summaryLLM, err := llm.NewGeminiClient(cfg.GeminiKey, cfg.SummaryModel)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize summary provider: %w", err)
	}
	log.Info("using Gemini for summaries", "model", cfg.SummaryModel)

	planLLM, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.PlanModel))
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize plan provider: %w", err)
	}
	log.Info("using OpenAI for plans and chat", "model", cfg.PlanModel)

	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	pl := planner.New(st, summaryLLM, planLLM, retrieval.NewKBRetriever(st, embedder), ch, log, planner.Options{
		TopK:             cfg.RetrievalTopK,
		SummaryMaxTokens: cfg.SummaryMaxTokens,
		PlanMaxTokens:    cfg.PlanMaxTokens,
		CacheTTL:         time.Duration(cfg.CacheTTL) * time.Second,
		StrictPlanShape:  cfg.StrictPlanShape,
	})

	return Deps{
		Config:  cfg,
		Log:     log,
		Store:   st,
		Queue:   q,
		Cache:   ch,
		Planner: pl,
	}, nil
}

// BuildWorker loads env, config, and the ingestion worker's components.
func BuildWorker(service string) (WorkerDeps, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(service, cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return WorkerDeps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return WorkerDeps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return WorkerDeps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return WorkerDeps{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Queue:    q,
		Embedder: embedder,
	}, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid option: postgres)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, chat caching disabled")
		return cache.NewNoOpCache()
	}
	ch, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable, chat caching disabled", "err", err)
		return cache.NewNoOpCache()
	}
	log.Info("using Redis cache", "addr", cfg.RedisAddr)
	return ch
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
	}
	log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
	return embedder, nil
}
