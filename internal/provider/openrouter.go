package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sheldon123z/invoice-ocr/constants"
	"github.com/sheldon123z/invoice-ocr/internal/common"
)

const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter talks to the OpenRouter multi-model gateway using its
// OpenAI-compatible chat-completions format. The referer headers are the
// ones OpenRouter recommends for leaderboard attribution.
type OpenRouter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenRouter(apiKey, model string, timeout time.Duration, logger *slog.Logger) *OpenRouter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if model == "" {
		model = "google/gemini-2.0-flash-exp:free"
	}
	return &OpenRouter{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultOpenRouterBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithBaseURL overrides the gateway URL; test hook only.
func (o *OpenRouter) WithBaseURL(baseURL string) *OpenRouter {
	o.baseURL = strings.TrimRight(baseURL, "/")
	return o
}

func (o *OpenRouter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"HTTP-Referer":  "https://github.com/sheldon123z/invoice-ocr",
		"X-Title":       "Invoice OCR Tool",
	}
}

func (o *OpenRouter) Call(ctx context.Context, imagePath, instruction string) (string, error) {
	imageB64, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}
	mime := constants.MIMEForExt(filepath.Ext(imagePath))

	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instruction},
					{
						"type":      "image_url",
						"image_url": map[string]any{"url": "data:" + mime + ";base64," + imageB64},
					},
				},
			},
		},
	}

	raw, err := sendJSON(ctx, o.httpClient, http.MethodPost, o.baseURL+"/chat/completions", payload, o.headers(), o.logger)
	if err != nil {
		return "", common.ProviderError("openrouter chat", err)
	}
	return decodeChatCompletion("openrouter", raw)
}

// FetchModels returns the gateway's published model catalog as
// (id, display-name) pairs sorted by display name. Entries without a
// positive context length are dropped; a zero capacity advertises a model
// that cannot actually be used.
func (o *OpenRouter) FetchModels(ctx context.Context) ([]ModelInfo, error) {
	raw, err := sendJSON(ctx, o.httpClient, http.MethodGet, o.baseURL+"/models", nil, o.headers(), o.logger)
	if err != nil {
		return nil, common.ProviderError("openrouter models", err)
	}

	var resp struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int64  `json:"context_length"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, common.ProviderError("decode openrouter models", err)
	}

	models := make([]ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID == "" || m.ContextLength <= 0 {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, ModelInfo{ID: m.ID, Name: name})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}
