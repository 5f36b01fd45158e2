package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/duplicate-detector/internal/config"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
	"github.com/kirillkom/duplicate-detector/internal/core/usecase"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/chunking"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/extractor"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/llm/claude"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/queue/nats"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/rerank"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/resilience"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/validation"
	"github.com/kirillkom/duplicate-detector/internal/observability/metrics"
)

type reasoner interface {
	ports.PairVerifier
	ports.DocumentComparer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	AnalyzeUC  *usecase.AnalyzeUseCase
	Extractors *extractor.Registry
	Registry   *prometheus.Registry
	Metrics    *metrics.AnalysisMetrics

	closeFn func()
}

func New(cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	analysisMetrics := metrics.NewAnalysisMetrics(service, registry)

	executor := resilience.NewExecutor(
		resilience.CapabilityConfig(cfg.ResilienceRetryMaxAttempts, cfg.ResilienceBreakerEnabled),
		logger,
	)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Executor: executor,
		Logger:   logger,
	})
	embedder := ollama.NewEmbedder(ollamaClient)

	reasoning, err := newReasoner(cfg, ollamaClient, executor, logger)
	if err != nil {
		return nil, err
	}

	chunker := chunking.NewSemanticChunker(embedder, chunking.Options{
		BreakpointPercentile: cfg.SegmentBreakpointPercentile,
		BufferSize:           cfg.SegmentBufferSize,
		EmbedBatchSize:       cfg.EmbeddingBatchSize,
	})

	var reranker ports.Reranker
	if cfg.ClusterUseReranker {
		reranker = rerank.NewLexical()
	}

	var reviewer ports.PairVerifier
	if cfg.ValidationReviewBelow > 0 {
		reviewer = reasoning
	}
	validator, err := validation.NewValidator(validation.Policy{
		MinScore:        cfg.ValidationMinScore,
		RequireVerbatim: cfg.ValidationRequireVerbatim,
		ReviewBelow:     cfg.ValidationReviewBelow,
	}, reviewer, logger)
	if err != nil {
		return nil, fmt.Errorf("init validator: %w", err)
	}

	analyzeUC := usecase.NewAnalyzeUseCase(
		usecase.NewSegmenter(chunker, logger),
		usecase.NewEmbeddingGenerator(embedder, cfg.EmbeddingBatchSize, cfg.EmbeddingDimension, analysisMetrics, logger),
		usecase.NewClusteringEngine(usecase.ClusterConfig{
			TopK:                cfg.ClusterTopK,
			SimilarityThreshold: cfg.ClusterSimilarityThreshold,
			UseReranker:         cfg.ClusterUseReranker,
			MaxRerankCandidates: cfg.ClusterMaxRerankCandidates,
			RerankMinScore:      cfg.ClusterRerankMinScore,
		}, reranker, logger),
		usecase.NewCandidateVerifier(reasoning, 0, logger),
		usecase.NewDirectComparator(reasoning, logger),
		validator,
		analysisMetrics,
		usecase.AnalyzeConfig{
			WorkerPoolSize: cfg.WorkerPoolSize,
			Timeout:        cfg.AnalysisTimeout,
		},
		logger,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		AnalyzeUC:  analyzeUC,
		Extractors: extractor.NewRegistry(),
		Registry:   registry,
		Metrics:    analysisMetrics,
	}, nil
}

func newReasoner(cfg config.Config, client *ollama.Client, executor *resilience.Executor, logger *slog.Logger) (reasoner, error) {
	switch cfg.ReasoningProvider {
	case "anthropic":
		verifier, err := claude.NewVerifier(cfg.AnthropicAPIKey, claude.Options{
			Model:            cfg.AnthropicModel,
			MaxDocumentChars: cfg.DirectMaxChars,
			Executor:         executor,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init anthropic verifier: %w", err)
		}
		return verifier, nil
	default:
		return ollama.NewVerifier(client, cfg.DirectMaxChars), nil
	}
}

// ConnectQueue opens the NATS transport and closes it with the app.
func (a *App) ConnectQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(
			resilience.CapabilityConfig(a.Config.ResilienceRetryMaxAttempts, a.Config.ResilienceBreakerEnabled),
			a.Logger,
		),
		Logger: a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	prev := a.closeFn
	a.closeFn = func() {
		queue.Close()
		if prev != nil {
			prev()
		}
	}
	return queue, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
