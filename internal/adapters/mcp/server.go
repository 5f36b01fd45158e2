package mcpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const (
	serverName      = "duplicate-detector"
	serverVersion   = "1.0.0"
	analyzeToolName = "analyze_documents"
)

type Server struct {
	analyzer ports.DuplicateAnalyzer
	logger   *slog.Logger
}

func NewServer(analyzer ports.DuplicateAnalyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{analyzer: analyzer, logger: logger}
}

// MCPServer exposes analyze_documents as a tool.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	srv.AddTool(analyzeTool(), s.handleAnalyze)
	return srv
}

func analyzeTool() mcp.Tool {
	return mcp.NewTool(analyzeToolName,
		mcp.WithDescription("Find duplicated or paraphrased passages across documents. "+
			"Input is a JSON array of {documentId, page, content} page objects; "+
			"output is a JSON array of duplicate findings."),
		mcp.WithString("pages_json",
			mcp.Required(),
			mcp.Description(`JSON array such as [{"documentId":"1","page":1,"content":"..."}]`),
		),
	)
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("pages_json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := decodePages(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	findings, err := s.analyzer.AnalyzeDocuments(ctx, pages)
	if err != nil {
		s.logger.Error("mcp_analysis_failed", "pages", len(pages), "error", err)
		return mcp.NewToolResultError("analysis failed: " + err.Error()), nil
	}
	if findings == nil {
		findings = []domain.DuplicateFinding{}
	}
	body, err := json.Marshal(findings)
	if err != nil {
		return nil, fmt.Errorf("marshal findings: %w", err)
	}
	s.logger.Info("mcp_analysis_completed", "pages", len(pages), "findings", len(findings))
	return mcp.NewToolResultText(string(body)), nil
}

func decodePages(raw string) ([]domain.PageInput, error) {
	var items []struct {
		DocumentID any    `json:"documentId"`
		Page       int    `json:"page"`
		Content    string `json:"content"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("pages_json must be a JSON array of page objects: %w", err)
	}

	pages := make([]domain.PageInput, 0, len(items))
	for idx, item := range items {
		var id string
		switch v := item.DocumentID.(type) {
		case string:
			id = strings.TrimSpace(v)
		case json.Number:
			if _, err := v.Int64(); err != nil {
				return nil, fmt.Errorf("page %d: documentId must be a string or an integer", idx)
			}
			id = v.String()
		default:
			return nil, fmt.Errorf("page %d: documentId must be a string or an integer", idx)
		}
		pages = append(pages, domain.PageInput{DocumentID: id, Page: item.Page, Content: item.Content})
	}
	return pages, nil
}
