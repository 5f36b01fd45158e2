package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

type analysisRequest struct {
	Pages []domain.PageInput `json:"pages"`
}

type analysisReply struct {
	Findings  []domain.DuplicateFinding `json:"findings"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind string                    `json:"error_kind,omitempty"`
}

type errorKind struct {
	name string
	kind error
}

var errorKinds = []errorKind{
	{name: "empty_input", kind: domain.ErrEmptyInput},
	{name: "invalid_input", kind: domain.ErrInvalidInput},
	{name: "validation", kind: domain.ErrValidation},
	{name: "unauthorized", kind: domain.ErrUnauthorized},
	{name: "temporary", kind: domain.ErrTemporary},
}

func kindByName(name string) (error, bool) {
	for _, k := range errorKinds {
		if k.name == name {
			return k.kind, true
		}
	}
	return nil, false
}

// replyGrace lets the analyzer's own deadline fire first so partial findings
// are still encoded and sent back.
const replyGrace = 30 * time.Second

func handlerContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout+replyGrace)
}

func handleRequest(ctx context.Context, analyzer ports.DuplicateAnalyzer, data []byte, logger *slog.Logger) []byte {
	var req analysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn("nats_request_malformed", "error", err)
		return encodeReply(nil, domain.WrapError(domain.ErrInvalidInput, "decode analysis request", err))
	}

	findings, err := analyzer.AnalyzeDocuments(ctx, req.Pages)
	if err != nil {
		logger.Error("nats_analysis_failed", "pages", len(req.Pages), "error", err)
	}
	return encodeReply(findings, err)
}

func encodeReply(findings []domain.DuplicateFinding, err error) []byte {
	reply := analysisReply{Findings: findings}
	if reply.Findings == nil {
		reply.Findings = []domain.DuplicateFinding{}
	}
	if err != nil {
		reply.Findings = []domain.DuplicateFinding{}
		reply.Error = err.Error()
		for _, k := range errorKinds {
			if domain.IsKind(err, k.kind) {
				reply.ErrorKind = k.name
				break
			}
		}
	}
	body, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		body, _ = json.Marshal(analysisReply{Findings: []domain.DuplicateFinding{}, Error: marshalErr.Error()})
	}
	return body
}

// decodeReply restores the worker's error kind so callers can match it with
// domain.IsKind.
func decodeReply(data []byte) ([]domain.DuplicateFinding, error) {
	var reply analysisReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode analysis reply: %w", err)
	}
	if reply.Error == "" {
		if reply.Findings == nil {
			reply.Findings = []domain.DuplicateFinding{}
		}
		return reply.Findings, nil
	}
	if kind, ok := kindByName(reply.ErrorKind); ok {
		return nil, domain.WrapError(kind, "remote analysis", errors.New(reply.Error))
	}
	return nil, fmt.Errorf("remote analysis: %s", reply.Error)
}
