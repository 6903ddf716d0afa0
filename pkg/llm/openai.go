package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/go-http-kit/httpkit"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com"
)

// OpenAI は Chat Completions API のクライアントです。
type OpenAI struct {
	httpClient  httpkit.Doer
	baseURL     string
	apiKey      string
	model       string
	temperature float32
}

// NewOpenAI は OpenAI クライアントを返します。
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY は必須です")
	}
	o := &OpenAI{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	if o.baseURL == "" {
		o.baseURL = DefaultOpenAIBaseURL
	}
	if o.model == "" {
		o.model = DefaultOpenAIModel
	}
	if o.httpClient == nil {
		o.httpClient = httpkit.New(defaultTimeout)
	}
	return o, nil
}

func (o *OpenAI) Name() string { return ProviderOpenAI + ":" + o.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate はプロンプトからテキストを生成します。
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(map[string]any{
		"model":       o.model,
		"messages":    messages,
		"temperature": temperatureOf(req, o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	data, err := httpkit.HandleResponse(resp)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return checkText(out.Choices[0].Message.Content)
}
