package ollama

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/resilience"
)

// StatusError is a non-2xx answer from the Ollama API.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, e.Body)
}

// failure groups Ollama status answers by what the caller can do about them.
type failure int

const (
	failureTransient   failure = iota // overloaded or restarting, retry
	failureOversized                  // the batch exceeds the model context, only this batch is lost
	failureModelAbsent                // model not pulled, every later call fails the same way
	failureRejected                   // any other 4xx
)

var oversizedMarkers = []string{"context length", "input length", "too long", "exceeds"}

func statusFailure(err *StatusError) failure {
	switch {
	case isRetryableHTTPStatus(err.StatusCode):
		return failureTransient
	case err.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(err.Body), "model"):
		return failureModelAbsent
	case err.StatusCode == http.StatusBadRequest || err.StatusCode == http.StatusRequestEntityTooLarge:
		body := strings.ToLower(err.Body)
		for _, marker := range oversizedMarkers {
			if strings.Contains(body, marker) {
				return failureOversized
			}
		}
		if err.StatusCode == http.StatusRequestEntityTooLarge {
			return failureOversized
		}
	}
	return failureRejected
}

// classifyOllamaError keeps per-batch rejections out of the breaker so one
// oversized page cannot open it for the whole analysis. A missing model still
// counts, since no later request can succeed either.
func classifyOllamaError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusFailure(statusErr) {
		case failureTransient:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case failureModelAbsent:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
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

// toDomainError maps a failed call onto the domain error kinds: retryable
// failures become ErrTemporary and oversized input becomes ErrInvalidInput.
func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusFailure(statusErr) == failureOversized {
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	}
	if classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
