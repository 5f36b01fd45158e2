package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

type ClusterConfig struct {
	TopK                int
	SimilarityThreshold float64
	UseReranker         bool
	MaxRerankCandidates int
	RerankMinScore      float64
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		TopK:                5,
		SimilarityThreshold: 0.85,
		UseReranker:         true,
		MaxRerankCandidates: 20,
		RerankMinScore:      0.3,
	}
}

type ClusteringEngine struct {
	cfg      ClusterConfig
	reranker ports.Reranker
	logger   *slog.Logger
}

func NewClusteringEngine(cfg ClusterConfig, reranker ports.Reranker, logger *slog.Logger) *ClusteringEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxRerankCandidates <= 0 {
		cfg.MaxRerankCandidates = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClusteringEngine{cfg: cfg, reranker: reranker, logger: logger}
}

type neighbour struct {
	idx   int
	score float64
}

// InitialClustering partitions embedded segments into clusters. Every segment
// links to its top-K cosine neighbours scoring at least the similarity
// threshold, and links are merged transitively. Segments without an embedding
// are left out. Clusters and their members follow input order.
func (e *ClusteringEngine) InitialClustering(ctx context.Context, segments []domain.Segment) []domain.Cluster {
	embedded := make([]domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if !seg.HasEmbedding() {
			e.logger.Debug("cluster_skip_unembedded_segment", "segment_id", seg.ID)
			continue
		}
		embedded = append(embedded, seg)
	}
	if len(embedded) == 0 {
		return nil
	}

	sets := newDisjointSet(len(embedded))
	for i := range embedded {
		candidates := e.neighbours(embedded, i)
		if len(candidates) == 0 {
			continue
		}
		for _, j := range e.accept(ctx, embedded, i, candidates, sets) {
			sets.union(i, j)
		}
	}

	byRoot := make(map[int]int)
	clusters := make([]domain.Cluster, 0)
	for i, seg := range embedded {
		root := sets.find(i)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(clusters)
			byRoot[root] = pos
			clusters = append(clusters, domain.Cluster{})
		}
		clusters[pos].Segments = append(clusters[pos].Segments, seg)
	}

	e.logger.Info("initial_clustering_done", "segments", len(embedded), "clusters", len(clusters))
	return clusters
}

// FilterMultiDocumentClusters keeps clusters spanning at least two documents.
func (e *ClusteringEngine) FilterMultiDocumentClusters(clusters []domain.Cluster) []domain.Cluster {
	out := make([]domain.Cluster, 0, len(clusters))
	for idx, cluster := range clusters {
		if !cluster.IsMultiDocument() {
			continue
		}
		if cluster.HasSentinel() {
			e.logger.Warn("eligible_cluster_contains_sentinel",
				"cluster", idx,
				"segments", len(cluster.Segments),
				"documents", cluster.DocumentIDs(),
			)
		}
		out = append(out, cluster)
	}
	return out
}

// neighbours returns the top-K segments most similar to embedded[i], best
// first, ties broken by input position.
func (e *ClusteringEngine) neighbours(embedded []domain.Segment, i int) []neighbour {
	out := make([]neighbour, 0)
	for j := range embedded {
		if j == i {
			continue
		}
		score := domain.CosineSimilarity(embedded[i].Embedding, embedded[j].Embedding)
		if score <= 0 || score < e.cfg.SimilarityThreshold {
			continue
		}
		out = append(out, neighbour{idx: j, score: score})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score > out[b].score
		}
		return out[a].idx < out[b].idx
	})
	if len(out) > e.cfg.TopK {
		out = out[:e.cfg.TopK]
	}
	return out
}

// accept decides which cosine neighbours join embedded[i]'s cluster. With
// reranking on, only the first MaxRerankCandidates neighbours are considered
// and each must reach RerankMinScore. A reranker failure falls back to the
// cosine decision.
func (e *ClusteringEngine) accept(ctx context.Context, embedded []domain.Segment, i int, candidates []neighbour, sets *disjointSet) []int {
	if !e.cfg.UseReranker || e.reranker == nil {
		out := make([]int, len(candidates))
		for k, c := range candidates {
			out[k] = c.idx
		}
		return out
	}

	if len(candidates) > e.cfg.MaxRerankCandidates {
		candidates = candidates[:e.cfg.MaxRerankCandidates]
	}
	pending := make([]int, 0, len(candidates))
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if sets.find(c.idx) == sets.find(i) {
			continue
		}
		pending = append(pending, c.idx)
		texts = append(texts, embedded[c.idx].Content)
	}
	if len(pending) == 0 {
		return nil
	}

	scores, err := e.reranker.Rerank(ctx, embedded[i].Content, texts)
	if err != nil || len(scores) != len(pending) {
		e.logger.Warn("rerank_failed_using_cosine",
			"segment_id", embedded[i].ID,
			"candidates", len(pending),
			"scores", len(scores),
			"error", err,
		)
		return pending
	}

	out := make([]int, 0, len(pending))
	for k, idx := range pending {
		if scores[k] >= e.cfg.RerankMinScore {
			out = append(out, idx)
		}
	}
	return out
}

type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	s := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range s.parent {
		s.parent[i] = i
	}
	return s
}

func (s *disjointSet) find(x int) int {
	for s.parent[x] != x {
		s.parent[x] = s.parent[s.parent[x]]
		x = s.parent[x]
	}
	return x
}

func (s *disjointSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
}
