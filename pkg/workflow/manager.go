// Package workflow は設定から依存を組み立て、デザインセッションと Runner を提供します。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/pkg/config"
	"github.com/shouni/go-tattoo-kit/pkg/design"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/generator"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"
	"github.com/shouni/go-tattoo-kit/pkg/publisher"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
	"github.com/shouni/go-tattoo-kit/pkg/runner"
)

// Manager は、ワークフローの各工程を担う部品を構築・管理します。
type Manager struct {
	cfg        config.Config
	httpClient httpkit.HTTPClient
	bank       *questionnaire.Bank
	classifier *failure.Classifier
	synth      *prompts.Synthesizer
	pipeline   *generator.Pipeline
	repo       Repository
	publisher  design.Publisher
}

// New は、設定を基に新しい Manager を初期化します。
func New(ctx context.Context, args ManagerArgs) (*Manager, error) {
	if args.HTTPClient == nil {
		return nil, errors.New("httpClient は必須です")
	}
	if args.Writer != nil && args.OutputDir == "" {
		return nil, errors.New("Writer を指定する場合は OutputDir は必須です")
	}

	serviceClient := args.ServiceClient
	if serviceClient == nil {
		serviceClient = args.HTTPClient
	}

	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := failure.NewClassifier(logger)

	bank, err := initializeBank(args.Bank)
	if err != nil {
		return nil, err
	}
	provider, err := initializeLLM(ctx, args.Config, serviceClient, args.LLM)
	if err != nil {
		return nil, err
	}
	service, err := initializeImageService(args.Config, serviceClient, args.ImageService)
	if err != nil {
		return nil, err
	}
	synth, err := buildSynthesizer(args.Config, provider, bank, args.Repository, classifier)
	if err != nil {
		return nil, err
	}
	pipeline, err := buildPipeline(args.Config, service, synth, args.HTTPClient, args.Repository, classifier)
	if err != nil {
		return nil, fmt.Errorf("画像生成エンジンの初期化に失敗しました: %w", err)
	}

	m := &Manager{
		cfg:        args.Config,
		httpClient: args.HTTPClient,
		bank:       bank,
		classifier: classifier,
		synth:      synth,
		pipeline:   pipeline,
		repo:       args.Repository,
	}
	if args.Writer != nil {
		pub, err := publisher.NewDesignPublisher(args.Writer, args.OutputDir)
		if err != nil {
			return nil, err
		}
		m.publisher = pub
	}

	logger.Info("ワークフローを初期化しました",
		"llm", synth.UsesLLM(),
		"image_model", args.Config.ImageModel,
		"stages", len(generator.OptionsFromConfig(args.Config).Stages()),
		"story_steps", bank.StepCount(),
	)
	return m, nil
}

// Bank は使用中の質問バンクを返します。
func (m *Manager) Bank() *questionnaire.Bank { return m.bank }

// Synthesizer はプロンプト合成器を返します。
func (m *Manager) Synthesizer() *prompts.Synthesizer { return m.synth }

// NewSession は新しいデザインセッションを作成します。
func (m *Manager) NewSession() (*design.Session, error) {
	deps := design.Deps{
		Bank:       m.bank,
		Policy:     questionnaire.Policy{AllowSkip: m.cfg.AllowSkip},
		Generator:  m.pipeline,
		Classifier: m.classifier,
		FollowUps:  m.synth,
		Retry:      generator.DefaultRetryPolicy(),
	}
	if m.repo != nil {
		deps.Store = m.repo
	}
	if m.publisher != nil {
		deps.Publisher = m.publisher
	}
	return design.NewSession(deps)
}

// BuildGenerateRunner は回答ファイルから一括生成する Runner を作成します。
func (m *Manager) BuildGenerateRunner(opts ...runner.Option) (*runner.GenerateRunner, error) {
	return runner.NewGenerateRunner(m, opts...)
}
