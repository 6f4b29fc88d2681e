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

// DefaultVolcengineEndpoint is fixed; Volcengine routes by inference
// endpoint ID (the "model" field, e.g. ep-xxx), not by URL.
const DefaultVolcengineEndpoint = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"

// Volcengine talks to the Volcengine Ark vision API using its
// OpenAI-compatible chat-completions format with bearer-token auth.
type Volcengine struct {
	apiKey     string
	model      string // inference endpoint ID
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewVolcengine(apiKey, model string, timeout time.Duration, logger *slog.Logger) *Volcengine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Volcengine{
		apiKey:     apiKey,
		model:      model,
		endpoint:   DefaultVolcengineEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithEndpoint overrides the fixed endpoint; test hook only.
func (v *Volcengine) WithEndpoint(endpoint string) *Volcengine {
	v.endpoint = endpoint
	return v
}

func (v *Volcengine) Call(ctx context.Context, imagePath, instruction string) (string, error) {
	imageB64, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	// Volcengine always takes a JPEG data URI regardless of source format.
	payload := map[string]any{
		"model": v.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instruction},
					{
						"type":      "image_url",
						"image_url": map[string]any{"url": "data:image/jpeg;base64," + imageB64},
					},
				},
			},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + v.apiKey}

	raw, err := sendJSON(ctx, v.httpClient, http.MethodPost, v.endpoint, payload, headers, v.logger)
	if err != nil {
		return "", common.ProviderError("volcengine chat", err)
	}
	return decodeChatCompletion("volcengine", raw)
}

// decodeChatCompletion extracts choices[0].message.content from an
// OpenAI-compatible response. Absent or empty content is a provider error;
// the full raw body rides along as the diagnostic.
func decodeChatCompletion(backend string, raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", common.ProviderError("decode "+backend+" response", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", common.ProviderError(backend+" returned empty content: "+string(raw), nil)
	}
	return resp.Choices[0].Message.Content, nil
}
