// Package provider abstracts the remote vision backends that turn an
// invoice image plus an instruction into free text. Exactly three backend
// protocols are in scope; the factory resolves one per run.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/sheldon123z/invoice-ocr/internal/common"
)

// Provider sends an image and a natural-language instruction to a remote
// vision model and returns the model's free-text reply exactly as received.
// No retry happens at this level; that is the caller's responsibility.
type Provider interface {
	Call(ctx context.Context, imagePath, instruction string) (string, error)
}

// ModelInfo is one entry of a backend's published model catalog.
type ModelInfo struct {
	ID   string
	Name string
}

// CatalogFetcher is implemented by backends that publish a model catalog.
type CatalogFetcher interface {
	FetchModels(ctx context.Context) ([]ModelInfo, error)
}

// Config mirrors common.ProviderConfig; kept as an alias target so callers
// outside internal/common can construct providers directly in tests.
type Config = common.ProviderConfig

// New resolves a configuration into exactly one concrete provider.
func New(cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case "ollama":
		baseURL := fmt.Sprintf("http://%s:%d", cfg.OllamaHost, cfg.OllamaPort)
		return NewOllama(baseURL, cfg.OllamaModel, cfg.Timeout, logger), nil
	case "volcengine":
		return NewVolcengine(cfg.VolcengineAPIKey, cfg.VolcengineModel, cfg.Timeout, logger), nil
	case "openrouter":
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.Timeout, logger), nil
	default:
		return nil, common.ConfigurationError(fmt.Sprintf("unsupported provider kind: %q", cfg.Kind), common.ErrInvalidInput)
	}
}

// encodeImage reads and base64-encodes an image for transport.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", common.ProviderError("read image", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
