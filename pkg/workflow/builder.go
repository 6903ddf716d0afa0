package workflow

import (
	"context"
	"fmt"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/pkg/config"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/generator"
	"github.com/shouni/go-tattoo-kit/pkg/imaging"
	"github.com/shouni/go-tattoo-kit/pkg/llm"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

// initializeBank は質問バンクを返します。引数が nil の場合は組み込みのものを読み込みます。
func initializeBank(bank *questionnaire.Bank) (*questionnaire.Bank, error) {
	if bank != nil {
		return bank, nil
	}
	b, err := questionnaire.DefaultBank()
	if err != nil {
		return nil, fmt.Errorf("質問バンクの読み込みに失敗しました: %w", err)
	}
	return b, nil
}

// initializeLLM は言語モデルのプロバイダを初期化します。provider が none の場合は nil を返します。
func initializeLLM(ctx context.Context, cfg config.Config, httpClient httpkit.Doer, override llm.Provider) (llm.Provider, error) {
	if override != nil {
		return override, nil
	}
	provider, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Temperature: cfg.LLMTemperature,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return provider, nil
}

// initializeImageService は画像合成クライアントを初期化します。
func initializeImageService(cfg config.Config, httpClient httpkit.Doer, override imaging.Service) (imaging.Service, error) {
	if override != nil {
		return override, nil
	}
	c, err := imaging.NewClient(imaging.Config{
		BaseURL:      cfg.ImageBaseURL,
		APIKey:       cfg.ImageAPIKey,
		OutputFormat: cfg.ImageOutputFormat,
		HTTPClient:   httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("画像生成クライアントの初期化に失敗しました: %w", err)
	}
	return c, nil
}

// buildSynthesizer はプロンプト合成器を組み立てます。
func buildSynthesizer(cfg config.Config, provider llm.Provider, bank *questionnaire.Bank, repo Repository, classifier *failure.Classifier) (*prompts.Synthesizer, error) {
	opts := []prompts.SynthesizerOption{prompts.WithClassifier(classifier)}
	if repo != nil {
		opts = append(opts, prompts.WithUsageRecorder(repo, cfg.StageCredits[prompts.OperationPrompt]))
	}
	synth, err := prompts.NewSynthesizer(provider, bank, opts...)
	if err != nil {
		return nil, fmt.Errorf("プロンプト合成器の初期化に失敗しました: %w", err)
	}
	return synth, nil
}

// buildPipeline は 2 本の実行と段階ステージを束ねた生成パイプラインを組み立てます。
func buildPipeline(cfg config.Config, service imaging.Service, synth *prompts.Synthesizer, httpClient httpkit.Requester, repo Repository, classifier *failure.Classifier) (*generator.Pipeline, error) {
	deps := []generator.Option{
		generator.WithFetcher(imaging.NewReferenceFetcher(httpClient)),
		generator.WithClassifierOption(classifier),
	}
	if repo != nil {
		deps = append(deps, generator.WithUsage(repo))
	}
	orchestrator, err := generator.NewOrchestrator(service, generator.OptionsFromConfig(cfg), deps...)
	if err != nil {
		return nil, fmt.Errorf("オーケストレーターの初期化に失敗しました: %w", err)
	}
	return generator.NewPipeline(synth, orchestrator, cfg.ImageModel, prompts.DefaultNegativePrompt)
}
