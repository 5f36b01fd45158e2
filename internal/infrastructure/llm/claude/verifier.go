package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/resilience"
)

const (
	DefaultModel     = "claude-3-5-haiku-20241022"
	defaultMaxTokens = 4096
)

type Options struct {
	Model            string
	BaseURL          string
	MaxTokens        int64
	MaxDocumentChars int
	Executor         *resilience.Executor
	Logger           *slog.Logger
}

// Verifier is the reasoning capability backed by the Anthropic Messages API.
type Verifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	maxChars  int
	executor  *resilience.Executor
	logger    *slog.Logger
}

func NewVerifier(apiKey string, options Options) (*Verifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "anthropic verifier", errors.New("api key is empty"))
	}
	model := strings.TrimSpace(options.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Retries are owned by the resilience executor.
	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if options.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.BaseURL))
	}

	return &Verifier{
		client:    anthropic.NewClient(clientOptions...),
		model:     model,
		maxTokens: maxTokens,
		maxChars:  options.MaxDocumentChars,
		executor:  options.Executor,
		logger:    logger,
	}, nil
}

func (v *Verifier) VerifyPairs(ctx context.Context, pairs []domain.CandidatePair) ([]domain.PairJudgement, error) {
	if len(pairs) == 0 {
		return []domain.PairJudgement{}, nil
	}
	raw, err := v.complete(ctx, "anthropic.verify_pairs", prompt.PairVerification(pairs))
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
	raw, err := v.complete(ctx, "anthropic.compare_documents", prompt.DocumentComparison(left, right, v.maxChars))
	if err != nil {
		return nil, err
	}
	matches, err := prompt.DocumentMatches(raw)
	if err != nil {
		return nil, fmt.Errorf("parse document matches: %w", err)
	}
	return matches, nil
}

func (v *Verifier) complete(ctx context.Context, operation, promptText string) (string, error) {
	text, err := resilience.Do(ctx, v.executor, operation, func(callCtx context.Context) (string, error) {
		resp, err := v.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(v.model),
			MaxTokens: v.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(promptText)),
			},
		})
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		return b.String(), nil
	}, classifyAnthropicError)
	if err != nil {
		v.logger.Warn("anthropic_call_failed", "operation", operation, "error", err)
		return "", wrapError(operation, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: empty response", operation)
	}
	return text, nil
}

func classifyAnthropicError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapError(operation string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	if classifyAnthropicError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
