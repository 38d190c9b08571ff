package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/medication-finder/internal/config"
	"github.com/kirillkom/medication-finder/internal/core/ports"
	"github.com/kirillkom/medication-finder/internal/core/usecase"
	"github.com/kirillkom/medication-finder/internal/infrastructure/admission"
	"github.com/kirillkom/medication-finder/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/medication-finder/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/medication-finder/internal/infrastructure/queue/nats"
	"github.com/kirillkom/medication-finder/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/medication-finder/internal/infrastructure/resilience"
	"github.com/kirillkom/medication-finder/internal/infrastructure/search/elastic"
	"github.com/kirillkom/medication-finder/internal/infrastructure/vector/qdrant"
)

// Options carries process-specific hooks into the shared wiring.
type Options struct {
	Logger               *slog.Logger
	OnBreakerStateChange func(operation, from, to string)
}

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Index     *elastic.Client
	Search    ports.MedicationSearcher
	Catalog   ports.MedicationCatalog
	Chat      ports.ChatService
	Indexer   ports.MedicationIndexer
	Admission ports.AdmissionGate

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg, opts.OnBreakerStateChange))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewMedicationRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	gate, closeGate, err := newAdmissionGate(ctx, cfg)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init admission gate: %w", err)
	}

	weights, err := loadRankWeights(cfg.RankerWeightsFile)
	if err != nil {
		closeGate()
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	index := elastic.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, elastic.Options{
		Username: cfg.ElasticsearchUsername,
		Password: cfg.ElasticsearchPassword,
		Executor: executor,
	})
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))
	knowledge := qdrant.NewKnowledgeClient(cfg.QdrantURL, cfg.QdrantCollection, embedder, qdrant.Options{
		ScoreThreshold: cfg.QdrantScoreThreshold,
		Executor:       executor,
	})
	completions := openaicompat.New(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionTimeout, executor)

	search := usecase.NewMedicationSearchUseCase(
		usecase.NewFallbackSearch(
			usecase.NewEngineSearch(index, repo),
			usecase.NewRankedStoreSearch(repo, usecase.NewRanker(weights), cfg.SearchCandidateLimit),
			logger,
		),
		logger,
	)
	chat := usecase.NewChatUseCase(completions, knowledge, gate, usecase.ChatOptions{
		DecideModel:   cfg.ChatDecideModel,
		ReviewModel:   cfg.ChatReviewModel,
		ContextTurns:  cfg.ChatContextTurns,
		RetrievalTopK: cfg.QdrantTopK,
		Temperature:   &cfg.ChatTemperature,
		AdmissionCost: cfg.ChatAdmissionCost,
	}, logger)

	return &App{
		Config: cfg,

		Queue:     queue,
		Index:     index,
		Search:    search,
		Catalog:   usecase.NewCatalogUseCase(repo, logger),
		Chat:      chat,
		Indexer:   usecase.NewReindexUseCase(repo, index, queue, knowledge),
		Admission: gate,

		closeFn: func() {
			closeGate()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config, onStateChange func(operation, from, to string)) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	rc.OnBreakerStateChange = onStateChange
	return rc
}

func newAdmissionGate(ctx context.Context, cfg config.Config) (ports.AdmissionGate, func(), error) {
	quota := admission.Quota{Points: cfg.AdmissionPoints, Window: cfg.AdmissionWindow}
	switch cfg.AdmissionBackend {
	case "", "memory":
		return admission.NewMemoryGate(quota), func() {}, nil
	case "redis":
		client, err := admission.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return admission.NewRedisGate(client, quota, cfg.AdmissionKeyPrefix), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown admission backend %q", cfg.AdmissionBackend)
	}
}

func loadRankWeights(path string) (usecase.RankWeights, error) {
	if strings.TrimSpace(path) == "" {
		return usecase.DefaultRankWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return usecase.RankWeights{}, fmt.Errorf("read rank weights: %w", err)
	}
	return usecase.ParseRankWeights(data)
}
