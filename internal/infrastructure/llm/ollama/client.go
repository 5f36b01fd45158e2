package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
	Logger   *slog.Logger
}

func New(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
		logger:     logger,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "ollama.embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

// Verifier is the reasoning capability backed by an Ollama generation model.
// It serves pair verification, whole-document comparison and validator review.
type Verifier struct {
	client   *Client
	maxChars int
}

func NewVerifier(client *Client, maxDocumentChars int) *Verifier {
	return &Verifier{client: client, maxChars: maxDocumentChars}
}

func (v *Verifier) VerifyPairs(ctx context.Context, pairs []domain.CandidatePair) ([]domain.PairJudgement, error) {
	if len(pairs) == 0 {
		return []domain.PairJudgement{}, nil
	}
	raw, err := v.client.generateJSON(ctx, "ollama.verify_pairs", prompt.PairVerification(pairs))
	if err != nil {
		return nil, err
	}
	judgements, err := prompt.PairJudgements(raw, len(pairs))
	if err != nil {
		return nil, fmt.Errorf("parse pair judgements: %w", err)
	}
	return judgements, nil
}

func (v *Verifier) CompareDocuments(ctx context.Context, left, right domain.DocumentRecord) ([]domain.DocumentMatch, error) {
	raw, err := v.client.generateJSON(ctx, "ollama.compare_documents", prompt.DocumentComparison(left, right, v.maxChars))
	if err != nil {
		return nil, err
	}
	matches, err := prompt.DocumentMatches(raw)
	if err != nil {
		return nil, fmt.Errorf("parse document matches: %w", err)
	}
	return matches, nil
}

func (c *Client) generateJSON(ctx context.Context, operation, promptText string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": promptText,
		"stream": false,
		"format": "json",
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, operation, "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// call posts through the resilience executor when one is configured.
func (c *Client) call(ctx context.Context, operation, path string, payload any, out any) error {
	started := time.Now()
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.logger.Warn("ollama_call_failed", "operation", operation, "error", err)
		return toDomainError(operation, err)
	}
	c.logger.Debug("ollama_call_done", "operation", operation, "duration_ms", time.Since(started).Milliseconds())
	return nil
}
