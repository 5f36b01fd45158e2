package nats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

type analyzerFunc func(ctx context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, error)

func (f analyzerFunc) AnalyzeDocuments(ctx context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, error) {
	return f(ctx, pages)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleRequestReturnsFindings(t *testing.T) {
	var got []domain.PageInput
	analyzer := analyzerFunc(func(_ context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, error) {
		got = pages
		return []domain.DuplicateFinding{{DocumentID1: "1", DocumentID2: "2", Page1: 1, Page2: 3, Score: 0.9}}, nil
	})

	payload, _ := json.Marshal(analysisRequest{Pages: []domain.PageInput{{DocumentID: "1", Page: 1, Content: "a"}}})
	reply := handleRequest(context.Background(), analyzer, payload, discardLogger())

	if len(got) != 1 || got[0].Content != "a" {
		t.Fatalf("analyzer received %+v", got)
	}
	findings, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decodeReply() error = %v", err)
	}
	if len(findings) != 1 || findings[0].Page2 != 3 {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestHandleRequestPreservesErrorKind(t *testing.T) {
	analyzer := analyzerFunc(func(context.Context, []domain.PageInput) ([]domain.DuplicateFinding, error) {
		return nil, domain.WrapError(domain.ErrEmptyInput, "aggregate", errors.New("no pages"))
	})

	reply := handleRequest(context.Background(), analyzer, []byte(`{"pages":[]}`), discardLogger())
	_, err := decodeReply(reply)
	if !domain.IsKind(err, domain.ErrEmptyInput) {
		t.Fatalf("expected empty input kind, got %v", err)
	}
}

func TestHandlerContextOutlivesAnalysisTimeout(t *testing.T) {
	const timeout = 200 * time.Millisecond
	ctx, cancel := handlerContext(context.Background(), timeout)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("handler context has no deadline")
	}
	if remaining := time.Until(deadline); remaining <= timeout {
		t.Fatalf("handler deadline %v does not leave room after the analysis timeout %v", remaining, timeout)
	}

	unbounded, cancelUnbounded := handlerContext(context.Background(), 0)
	defer cancelUnbounded()
	if _, ok := unbounded.Deadline(); ok {
		t.Fatal("zero timeout must not set a deadline")
	}
}

func TestHandleRequestRejectsMalformedPayload(t *testing.T) {
	called := false
	analyzer := analyzerFunc(func(context.Context, []domain.PageInput) ([]domain.DuplicateFinding, error) {
		called = true
		return nil, nil
	})

	reply := handleRequest(context.Background(), analyzer, []byte("{"), discardLogger())
	if called {
		t.Fatalf("analyzer must not run for malformed payload")
	}
	_, err := decodeReply(reply)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestDecodeReplyUnknownKindIsPlainError(t *testing.T) {
	_, err := decodeReply([]byte(`{"findings":[],"error":"boom"}`))
	if err == nil || err.Error() != "remote analysis: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEncodeReplyEmptyFindingsIsArray(t *testing.T) {
	body := encodeReply(nil, nil)
	if string(body) != `{"findings":[]}` {
		t.Fatalf("unexpected reply body: %s", body)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if !classifyNATSError(nats.ErrNoResponders).Retryable {
		t.Fatalf("no responders must be retryable")
	}
	if classifyNATSError(context.Canceled).RecordFailure {
		t.Fatalf("cancellation must not record failure")
	}
	if !domain.IsKind(wrapTemporaryIfNeeded("nats request", nats.ErrTimeout), domain.ErrTemporary) {
		t.Fatalf("timeout must be temporary")
	}
	if domain.IsKind(wrapTemporaryIfNeeded("nats request", errors.New("bad")), domain.ErrTemporary) {
		t.Fatalf("plain error must not be temporary")
	}
}
