package bootstrap

import (
	"testing"

	"github.com/kirillkom/duplicate-detector/internal/config"
	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

func TestNewWiresOllamaPipeline(t *testing.T) {
	app, err := New(config.Defaults(), "test", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.AnalyzeUC == nil || app.Extractors == nil || app.Metrics == nil || app.Registry == nil {
		t.Fatalf("app not fully wired: %+v", app)
	}
}

func TestNewRequiresAnthropicKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.ReasoningProvider = "anthropic"
	cfg.AnthropicAPIKey = ""

	_, err := New(cfg, "test", nil)
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestNewRejectsInvalidValidationPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.ValidationMinScore = 1.5

	if _, err := New(cfg, "test", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
