package main

import (
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/duplicate-detector/internal/adapters/mcp"
	"github.com/kirillkom/duplicate-detector/internal/bootstrap"
	"github.com/kirillkom/duplicate-detector/internal/config"
	"github.com/kirillkom/duplicate-detector/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(cfg, "mcp", logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := server.ServeStdio(mcpadapter.NewServer(app.AnalyzeUC, logger).MCPServer()); err != nil {
		logger.Error("mcp_serve_failed", "error", err)
	}
}
