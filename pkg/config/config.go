package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultLLMProvider        = "gemini"
	DefaultGeminiModel        = "gemini-3-flash-preview"
	DefaultImageModel         = "sd3.5-large"
	DefaultImageBaseURL       = "https://api.stability.ai"
	DefaultStyleStrength      = 0.6
	DefaultStructureStrength  = 0.7
	DefaultMaxConcurrentCalls = 4
	DefaultRateInterval       = 2 * time.Second
	DefaultRateBurst          = 2
	DefaultRequestTimeout     = 2 * time.Minute
)

// StructureMode は構図制御ステージで使う制御の種類です。
type StructureMode string

const (
	StructureModeStructure StructureMode = "structure"
	StructureModeSketch    StructureMode = "sketch"
)

// Config は Go Tattoo Kit のパイプラインを動作させるための基本設定です。
type Config struct {
	// --- Language Model Settings ---
	LLMProvider    string // gemini | openai | ollama | none
	LLMModel       string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMTemperature float32

	// --- Image Synthesis Settings ---
	ImageBaseURL      string
	ImageAPIKey       string
	ImageModel        string
	ImageOutputFormat string

	// --- Stage Settings ---
	StyleEnabled      bool
	StyleStrength     float64 // 0〜1
	StructureEnabled  bool
	StructureStrength float64 // 0〜1
	StructureMode     StructureMode

	// --- Questionnaire Settings ---
	AllowSkip bool

	// --- Concurrency & Timeout ---
	MaxConcurrentCalls int64
	RateInterval       time.Duration
	RateBurst          int
	RequestTimeout     time.Duration

	// --- Usage ---
	StageCredits map[string]float64 // ステージ名ごとの消費クレジット
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		LLMProvider:        DefaultLLMProvider,
		LLMModel:           DefaultGeminiModel,
		ImageBaseURL:       DefaultImageBaseURL,
		ImageModel:         DefaultImageModel,
		ImageOutputFormat:  "png",
		StyleEnabled:       true,
		StyleStrength:      DefaultStyleStrength,
		StructureEnabled:   true,
		StructureStrength:  DefaultStructureStrength,
		StructureMode:      StructureModeStructure,
		AllowSkip:          true,
		MaxConcurrentCalls: DefaultMaxConcurrentCalls,
		RateInterval:       DefaultRateInterval,
		RateBurst:          DefaultRateBurst,
		RequestTimeout:     DefaultRequestTimeout,
		StageCredits: map[string]float64{
			"prompt":    0.1,
			"base":      6.5,
			"style":     4,
			"structure": 3,
			"refine":    4,
		},
	}
}
