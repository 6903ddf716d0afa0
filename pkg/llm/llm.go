// Package llm は言語モデルサービスへの最小限のクライアントを提供します。
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
)

const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultTemperature = float32(0.7)
	defaultTimeout     = 60 * time.Second
)

// ErrEmptyResponse はサービスは応答したが本文が空だったことを示します。通信失敗とは区別されます。
var ErrEmptyResponse = errors.New("言語モデルの応答が空です")

// Request は 1 回のテキスト生成要求です。
type Request struct {
	System      string
	Prompt      string
	Temperature *float32
}

// Provider はプロンプトを受け取り生成テキストを返すサービスです。
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config はプロバイダーの選択と接続設定です。
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	// HTTPClient は OpenAI と Ollama の呼び出しに使います。Gemini は SDK 内部のクライアントを使います。
	HTTPClient httpkit.Doer
}

// New は Config に従ってプロバイダーを構築します。
// Provider が空か "none" の場合は (nil, nil) を返し、言語モデル未設定を表します。
func New(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("未対応の言語モデルプロバイダーです: %q", cfg.Provider)
	}
}

func temperatureOf(req Request, fallback float32) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return fallback
}

func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
