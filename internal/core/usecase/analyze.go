package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const (
	StrategyClustering = "clustering"
	StrategyDirect     = "direct"

	defaultAnalysisTimeout = 5 * time.Minute
)

var errStrategyPanic = errors.New("strategy panicked")

type AnalyzeConfig struct {
	WorkerPoolSize int
	Timeout        time.Duration
}

// AnalyzeUseCase runs the clustering pipeline and the direct comparator
// concurrently over one set of pages, then merges, deduplicates and validates
// their findings. Each call is an independent execution with its own pool.
type AnalyzeUseCase struct {
	segmenter  *Segmenter
	embeddings *EmbeddingGenerator
	clustering *ClusteringEngine
	verifier   *CandidateVerifier
	comparator *DirectComparator
	validator  ports.Validator
	observer   ports.AnalysisObserver
	cfg        AnalyzeConfig
	logger     *slog.Logger
}

func NewAnalyzeUseCase(
	segmenter *Segmenter,
	embeddings *EmbeddingGenerator,
	clustering *ClusteringEngine,
	verifier *CandidateVerifier,
	comparator *DirectComparator,
	validator ports.Validator,
	observer ports.AnalysisObserver,
	cfg AnalyzeConfig,
	logger *slog.Logger,
) *AnalyzeUseCase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAnalysisTimeout
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		segmenter:  segmenter,
		embeddings: embeddings,
		clustering: clustering,
		verifier:   verifier,
		comparator: comparator,
		validator:  validator,
		observer:   observer,
		cfg:        cfg,
		logger:     logger,
	}
}

func (uc *AnalyzeUseCase) AnalyzeDocuments(ctx context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, error) {
	started := time.Now()
	executionID := uuid.NewString()
	logger := uc.logger.With("execution_id", executionID)
	logger.Info("analysis_started", "pages", len(pages))

	documents, _, err := AggregatePages(pages, logger)
	if err != nil {
		uc.observer.ObserveExecution("rejected", time.Since(started))
		logger.Warn("analysis_rejected", "error", err)
		return nil, err
	}

	strategyCtx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()
	pool := NewWorkerPool(uc.cfg.WorkerPoolSize)

	var (
		wg              sync.WaitGroup
		clusterFindings []domain.DuplicateFinding
		directFindings  []domain.DuplicateFinding
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		clusterFindings = uc.runStrategy(strategyCtx, logger, StrategyClustering, func(runCtx context.Context) []domain.DuplicateFinding {
			return uc.clusterPipeline(runCtx, logger, pool, documents)
		})
	}()
	go func() {
		defer wg.Done()
		directFindings = uc.runStrategy(strategyCtx, logger, StrategyDirect, func(runCtx context.Context) []domain.DuplicateFinding {
			return uc.comparator.CompareDocuments(runCtx, pool, documents)
		})
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			uc.observer.ObserveExecution("canceled", time.Since(started))
			return nil, fmt.Errorf("analyze documents: %w", err)
		}
		logger.Warn("analysis_deadline_reached", "error", err)
	}
	validateCtx, cancelValidate := validationContext(ctx)
	defer cancelValidate()

	merged := make([]domain.DuplicateFinding, 0, len(clusterFindings)+len(directFindings))
	merged = append(merged, clusterFindings...)
	merged = append(merged, directFindings...)
	deduped := DeduplicateFindings(merged)
	logger.Info("findings_merged",
		"cluster_findings", len(clusterFindings),
		"direct_findings", len(directFindings),
		"deduplicated", len(deduped),
	)

	if len(deduped) == 0 {
		uc.observer.ObserveExecution("success", time.Since(started))
		logger.Info("analysis_completed", "findings", 0, "duration_ms", time.Since(started).Milliseconds())
		return []domain.DuplicateFinding{}, nil
	}

	validated, err := uc.validate(validateCtx, documents, deduped)
	if err != nil {
		uc.observer.ObserveExecution("failed", time.Since(started))
		logger.Error("validation_failed", "error", err)
		return nil, err
	}

	uc.observer.ObserveExecution("success", time.Since(started))
	logger.Info("analysis_completed", "findings", len(validated), "duration_ms", time.Since(started).Milliseconds())
	return validated, nil
}

// runStrategy isolates one detection strategy: a panic or an expired deadline
// turns its contribution into zero findings.
func (uc *AnalyzeUseCase) runStrategy(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	fn func(context.Context) []domain.DuplicateFinding,
) (findings []domain.DuplicateFinding) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("strategy_failed", "strategy", name, "panic", fmt.Sprint(r))
			uc.observer.ObserveStrategy(name, 0, errStrategyPanic)
			findings = nil
		}
	}()

	findings = fn(ctx)
	if err := strategyInterrupted(ctx, time.Now()); err != nil {
		logger.Error("strategy_failed", "strategy", name, "error", err, "discarded_findings", len(findings))
		uc.observer.ObserveStrategy(name, 0, err)
		return nil
	}

	logger.Info("strategy_completed",
		"strategy", name,
		"findings", len(findings),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	uc.observer.ObserveStrategy(name, len(findings), nil)
	return findings
}

// strategyInterrupted reports whether ctx ended before a strategy finished at
// finished. Findings returned ahead of the deadline are kept.
func strategyInterrupted(ctx context.Context, finished time.Time) error {
	err := ctx.Err()
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && finished.Before(deadline) {
		return nil
	}
	return err
}

// validationGrace bounds validation once the caller's deadline has passed.
const validationGrace = 10 * time.Second

// validationContext detaches validation from an expired caller deadline so the
// surviving findings can still be reviewed.
func validationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), validationGrace)
}

func (uc *AnalyzeUseCase) clusterPipeline(
	ctx context.Context,
	logger *slog.Logger,
	pool *WorkerPool,
	documents []domain.DocumentRecord,
) []domain.DuplicateFinding {
	segments := uc.segmenter.SegmentDocuments(ctx, pool, documents)
	if len(segments) == 0 {
		logger.Info("no_segments_produced")
		uc.observer.ObserveEligibleClusters(0)
		return nil
	}

	embedded := uc.embeddings.Generate(ctx, pool, segments)
	clusters := uc.clustering.InitialClustering(ctx, embedded)
	eligible := uc.clustering.FilterMultiDocumentClusters(clusters)
	uc.observer.ObserveEligibleClusters(len(eligible))
	logger.Info("clusters_filtered", "segments", len(segments), "clusters", len(clusters), "eligible", len(eligible))
	if len(eligible) == 0 {
		return nil
	}

	return uc.verifier.VerifyClusters(ctx, pool, eligible)
}

// validate applies the validation policy and rejects output that introduces
// a document pair absent from its input.
func (uc *AnalyzeUseCase) validate(
	ctx context.Context,
	documents []domain.DocumentRecord,
	findings []domain.DuplicateFinding,
) ([]domain.DuplicateFinding, error) {
	if uc.validator == nil {
		return findings, nil
	}

	validated, err := uc.validator.Validate(ctx, documents, findings)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "validate findings", err)
	}
	if len(validated) > len(findings) {
		return nil, domain.WrapError(domain.ErrValidation, "validate findings",
			fmt.Errorf("validator returned %d findings for %d inputs", len(validated), len(findings)))
	}

	known := make(map[[2]string]struct{}, len(findings))
	for _, f := range findings {
		known[documentPairKey(f)] = struct{}{}
	}
	for _, f := range validated {
		if _, ok := known[documentPairKey(f)]; !ok {
			return nil, domain.WrapError(domain.ErrValidation, "validate findings",
				fmt.Errorf("validator introduced document pair %s/%s", f.DocumentID1, f.DocumentID2))
		}
	}
	if validated == nil {
		validated = []domain.DuplicateFinding{}
	}
	return validated, nil
}

func documentPairKey(f domain.DuplicateFinding) [2]string {
	if f.DocumentID2 < f.DocumentID1 {
		return [2]string{f.DocumentID2, f.DocumentID1}
	}
	return [2]string{f.DocumentID1, f.DocumentID2}
}
