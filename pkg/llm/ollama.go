package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/go-http-kit/httpkit"
)

const (
	DefaultOllamaModel = "llama3.2"
	DefaultOllamaURL   = "http://localhost:11434"
)

// Ollama はローカルの Ollama サーバーのクライアントです。
type Ollama struct {
	httpClient  httpkit.Doer
	baseURL     string
	model       string
	temperature float32
}

// NewOllama は Ollama クライアントを返します。
func NewOllama(cfg Config) *Ollama {
	o := &Ollama{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	if o.baseURL == "" {
		o.baseURL = DefaultOllamaURL
	}
	if o.model == "" {
		o.model = DefaultOllamaModel
	}
	if o.httpClient == nil {
		o.httpClient = httpkit.New(defaultTimeout, httpkit.WithSkipNetworkValidation(true))
	}
	return o
}

func (o *Ollama) Name() string { return ProviderOllama + ":" + o.model }

// Generate はプロンプトからテキストを生成します。
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  o.model,
		"prompt": req.Prompt,
		"system": req.System,
		"stream": false,
		"options": map[string]any{
			"temperature": temperatureOf(req, o.temperature),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	data, err := httpkit.HandleResponse(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	return checkText(out.Response)
}
