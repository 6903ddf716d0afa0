package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-utils/envutil"

	kit "github.com/shouni/go-tattoo-kit/pkg/config"
)

// デフォルト値の定義なのだ
const (
	DefaultDatabasePath = "tattoo.db"
	DefaultOutputDir    = "output"
	DefaultAddr         = ":8080"
	DefaultHTTPTimeout  = 2 * time.Minute
)

// Config はアプリケーション全体の環境設定（APIキーや保存先）を保持する構造体なのだ。
type Config struct {
	Kit kit.Config

	DatabasePath  string
	OutputDir     string
	QuestionsFile string
	Addr          string
	HTTPTimeout   time.Duration
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
// 数値の形式が不正な場合はエラーにするのだ。
func LoadConfig() (*Config, error) {
	k := kit.DefaultConfig()
	k.LLMProvider = strings.ToLower(envutil.GetEnv("LLM_PROVIDER", k.LLMProvider))
	k.LLMModel = envutil.GetEnv("LLM_MODEL", "")
	k.LLMAPIKey, k.LLMBaseURL = llmCredentials(k.LLMProvider)
	k.ImageBaseURL = envutil.GetEnv("IMAGE_API_URL", k.ImageBaseURL)
	k.ImageAPIKey = envutil.GetEnv("IMAGE_API_KEY", "")
	k.ImageModel = envutil.GetEnv("IMAGE_MODEL", k.ImageModel)

	var err error
	if k.StyleStrength, err = floatEnv("STYLE_STRENGTH", k.StyleStrength); err != nil {
		return nil, err
	}
	if k.StructureStrength, err = floatEnv("STRUCTURE_STRENGTH", k.StructureStrength); err != nil {
		return nil, err
	}
	if k.MaxConcurrentCalls, err = intEnv("MAX_CONCURRENT_CALLS", k.MaxConcurrentCalls); err != nil {
		return nil, err
	}
	if k.RateInterval, err = durationEnv("RATE_INTERVAL", k.RateInterval); err != nil {
		return nil, err
	}

	return &Config{
		Kit:           k,
		DatabasePath:  envutil.GetEnv("DATABASE_PATH", DefaultDatabasePath),
		OutputDir:     envutil.GetEnv("OUTPUT_DIR", DefaultOutputDir),
		QuestionsFile: envutil.GetEnv("QUESTIONS_FILE", ""),
		Addr:          envutil.GetEnv("ADDR", DefaultAddr),
		HTTPTimeout:   DefaultHTTPTimeout,
	}, nil
}

// llmCredentials はプロバイダごとの API キーと接続先を返すのだ。
func llmCredentials(provider string) (apiKey, baseURL string) {
	switch provider {
	case "openai":
		return envutil.GetEnv("OPENAI_API_KEY", ""), envutil.GetEnv("OPENAI_BASE_URL", "")
	case "ollama":
		return "", envutil.GetEnv("OLLAMA_URL", "")
	default:
		return envutil.GetEnv("GEMINI_API_KEY", ""), ""
	}
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が数値ではありません: %w", key, err)
	}
	return v, nil
}

func intEnv(key string, fallback int64) (int64, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が整数ではありません: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が期間の形式ではありません: %w", key, err)
	}
	return v, nil
}
