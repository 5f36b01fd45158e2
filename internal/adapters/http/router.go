package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/duplicate-detector/internal/config"
	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
	"github.com/kirillkom/duplicate-detector/internal/observability/metrics"
)

const (
	serviceName          = "api"
	serviceVersion       = "1.0.0"
	multipartMemoryBytes = 32 << 20
)

type Router struct {
	cfg        config.Config
	analyzer   ports.DuplicateAnalyzer
	extractors ports.PageExtractor
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	analyzer ports.DuplicateAnalyzer,
	extractors ports.PageExtractor,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		analyzer:   analyzer,
		extractors: extractors,
		metrics:    httpMetrics,
		logger:     logger,
	}
}

func (rt *Router) Handler() http.Handler {
	gate := newBackpressureGate(rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond, rt.onReject)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/status", rt.status)
	mux.Handle("/v1/analyze", gate.wrap(http.HandlerFunc(rt.analyze)))
	mux.Handle("/v1/analyze/simple", gate.wrap(http.HandlerFunc(rt.analyzeSimple)))
	mux.Handle("/v1/analyze/files", gate.wrap(http.HandlerFunc(rt.analyzeFiles)))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = openAPIValidationMiddleware(handler, rt.logger)
	handler = bodyLimitMiddleware(handler, rt.cfg.APIMaxRequestBodyBytes)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "running",
		"version":            serviceVersion,
		"reasoning_provider": rt.cfg.ReasoningProvider,
		"worker_pool_size":   rt.cfg.WorkerPoolSize,
		"analysis_timeout":   rt.cfg.AnalysisTimeout.String(),
		"clustering": map[string]any{
			"top_k":                 rt.cfg.ClusterTopK,
			"similarity_threshold":  rt.cfg.ClusterSimilarityThreshold,
			"use_reranker":          rt.cfg.ClusterUseReranker,
			"max_rerank_candidates": rt.cfg.ClusterMaxRerankCandidates,
		},
		"validation": map[string]any{
			"min_score":        rt.cfg.ValidationMinScore,
			"require_verbatim": rt.cfg.ValidationRequireVerbatim,
			"review_below":     rt.cfg.ValidationReviewBelow,
		},
	})
}

type analyzeResponse struct {
	Success        bool                      `json:"success"`
	Message        string                    `json:"message"`
	Data           []domain.DuplicateFinding `json:"data"`
	TotalCount     int                       `json:"total_count"`
	ProcessingTime float64                   `json:"processing_time"`
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req []pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	pages := make([]domain.PageInput, 0, len(req))
	for _, p := range req {
		pages = append(pages, p.toDomain())
	}

	findings, elapsed, err := rt.runAnalysis(r.Context(), pages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), analyzeResponse{
			Success:        false,
			Message:        "analysis failed: " + err.Error(),
			Data:           []domain.DuplicateFinding{},
			ProcessingTime: elapsed.Seconds(),
		})
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:        true,
		Message:        fmt.Sprintf("analysis finished, %d duplicate pairs found", len(findings)),
		Data:           findings,
		TotalCount:     len(findings),
		ProcessingTime: elapsed.Seconds(),
	})
}

type simpleRequest struct {
	Documents []simpleDocument `json:"documents"`
	Threshold *float64         `json:"threshold"`
	Method    string           `json:"method"`
}

type simpleDocument struct {
	DocumentID documentID `json:"document_id"`
	Page       int        `json:"page"`
	Content    string     `json:"content"`
}

type simpleDuplicate struct {
	Doc1ID     string  `json:"doc1_id"`
	Doc2ID     string  `json:"doc2_id"`
	Page1      int     `json:"page1"`
	Page2      int     `json:"page2"`
	Similarity float64 `json:"similarity"`
	Content1   string  `json:"content1"`
	Content2   string  `json:"content2"`
	Reason     string  `json:"reason"`
	Category   string  `json:"category"`
}

type simpleResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	Data             []simpleDuplicate `json:"data"`
	TotalComparisons int               `json:"total_comparisons"`
	DuplicatesFound  int               `json:"duplicates_found"`
	ProcessingTime   float64           `json:"processing_time"`
	Config           map[string]any    `json:"config"`
}

// defaultSimpleThreshold is echoed back when a request omits threshold. Such
// requests get every finding; only an explicit threshold filters.
const defaultSimpleThreshold = 0.7

func (rt *Router) analyzeSimple(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req simpleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	threshold, echoed := 0.0, defaultSimpleThreshold
	if req.Threshold != nil {
		threshold, echoed = *req.Threshold, *req.Threshold
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "semantic"
	}
	cfgEcho := map[string]any{"threshold": echoed, "method": method}

	pages := make([]domain.PageInput, 0, len(req.Documents))
	for _, d := range req.Documents {
		page := d.Page
		if page == 0 {
			page = 1
		}
		pages = append(pages, domain.PageInput{DocumentID: string(d.DocumentID), Page: page, Content: d.Content})
	}

	findings, elapsed, err := rt.runAnalysis(r.Context(), pages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), simpleResponse{
			Success:        false,
			Message:        "analysis failed: " + err.Error(),
			Data:           []simpleDuplicate{},
			ProcessingTime: elapsed.Seconds(),
			Config:         cfgEcho,
		})
		return
	}

	duplicates := make([]simpleDuplicate, 0, len(findings))
	for _, f := range findings {
		if f.Score < threshold {
			continue
		}
		duplicates = append(duplicates, simpleDuplicate{
			Doc1ID:     f.DocumentID1,
			Doc2ID:     f.DocumentID2,
			Page1:      f.Page1,
			Page2:      f.Page2,
			Similarity: f.Score,
			Content1:   f.Content1,
			Content2:   f.Content2,
			Reason:     f.Reason,
			Category:   f.Category,
		})
	}
	writeJSON(w, http.StatusOK, simpleResponse{
		Success:          true,
		Message:          fmt.Sprintf("analysis finished, %d duplicate pairs found", len(duplicates)),
		Data:             duplicates,
		TotalComparisons: len(pages) * (len(pages) - 1) / 2,
		DuplicatesFound:  len(duplicates),
		ProcessingTime:   elapsed.Seconds(),
		Config:           cfgEcho,
	})
}

func (rt *Router) analyzeFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.extractors == nil {
		writeError(w, http.StatusNotImplemented, "file ingestion is not configured")
		return
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	ids := r.MultipartForm.Value["document_id"]

	pages := make([]domain.PageInput, 0, len(files))
	for idx, header := range files {
		docID := strconv.Itoa(idx + 1)
		if idx < len(ids) && strings.TrimSpace(ids[idx]) != "" {
			docID = strings.TrimSpace(ids[idx])
		}
		extracted, err := rt.extractFile(r.Context(), docID, header)
		if err != nil {
			rt.logger.Warn("file_extraction_failed", "document_id", docID, "filename", header.Filename, "error", err)
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		pages = append(pages, extracted...)
	}

	findings, elapsed, err := rt.runAnalysis(r.Context(), pages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), analyzeResponse{
			Success:        false,
			Message:        "analysis failed: " + err.Error(),
			Data:           []domain.DuplicateFinding{},
			ProcessingTime: elapsed.Seconds(),
		})
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:        true,
		Message:        fmt.Sprintf("analysis finished, %d duplicate pairs found", len(findings)),
		Data:           findings,
		TotalCount:     len(findings),
		ProcessingTime: elapsed.Seconds(),
	})
}

func (rt *Router) extractFile(ctx context.Context, docID string, header *multipart.FileHeader) ([]domain.PageInput, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()
	return rt.extractors.ExtractPages(ctx, docID, header.Filename, file)
}

func (rt *Router) runAnalysis(ctx context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, time.Duration, error) {
	start := time.Now()
	findings, err := rt.analyzer.AnalyzeDocuments(ctx, pages)
	elapsed := time.Since(start)
	if err != nil {
		rt.logger.Error("analysis_request_failed",
			"request_id", requestIDFromContext(ctx),
			"pages", len(pages),
			"error", err,
		)
		return nil, elapsed, err
	}
	if findings == nil {
		findings = []domain.DuplicateFinding{}
	}
	rt.logger.Info("analysis_request_completed",
		"request_id", requestIDFromContext(ctx),
		"pages", len(pages),
		"findings", len(findings),
		"duration_ms", elapsed.Milliseconds(),
	)
	return findings, elapsed, nil
}

type pageRequest struct {
	DocumentID documentID `json:"documentId"`
	Page       int        `json:"page"`
	Content    string     `json:"content"`
}

func (p pageRequest) toDomain() domain.PageInput {
	return domain.PageInput{DocumentID: string(p.DocumentID), Page: p.Page, Content: p.Content}
}

// documentID accepts a JSON string or an integer.
type documentID string

func (d *documentID) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*d = documentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return errors.New("documentId must be a string or an integer")
	}
	if _, err := n.Int64(); err != nil {
		return errors.New("documentId must be a string or an integer")
	}
	*d = documentID(n.String())
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
