package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sheldon123z/invoice-ocr/internal/common"
)

// Ollama talks to a local-network Ollama instance over its chat API.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOllama(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Ollama {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (o *Ollama) Call(ctx context.Context, imagePath, instruction string) (string, error) {
	imageB64, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": instruction,
				"images":  []string{imageB64},
			},
		},
		"stream": false,
	}

	raw, err := sendJSON(ctx, o.httpClient, http.MethodPost, o.baseURL+"/api/chat", payload, nil, o.logger)
	if err != nil {
		return "", common.ProviderError("ollama chat", err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", common.ProviderError("decode ollama response", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", common.ProviderError("ollama returned empty content: "+string(raw), nil)
	}
	return resp.Message.Content, nil
}
