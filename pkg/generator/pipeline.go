package generator

import (
	"context"
	"errors"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
)

// PromptSynthesizer は回答から生成プロンプトを作ります。
type PromptSynthesizer interface {
	Synthesize(ctx context.Context, answers *domain.SessionAnswers) (string, error)
}

// Runner は PipelineRequest から検証済みの結果を作ります。
type Runner interface {
	Run(ctx context.Context, req domain.PipelineRequest, refs []domain.ReferenceImage) (*domain.PipelineResult, error)
}

// Generator は回答から画像の組を作る 1 試行の契約です。
type Generator interface {
	Generate(ctx context.Context, answers *domain.SessionAnswers) (*domain.PipelineResult, error)
}

// Pipeline はプロンプト合成、リクエスト構築、オーケストレーションを 1 試行として束ねます。
type Pipeline struct {
	synth    PromptSynthesizer
	runner   Runner
	model    string
	negative string
	seed     *int64
}

// PipelineOption は Pipeline の任意設定です。
type PipelineOption func(*Pipeline)

// WithSeed は固定シードを指定します。再現のために使います。
func WithSeed(seed int64) PipelineOption {
	return func(p *Pipeline) { p.seed = &seed }
}

// NewPipeline は Pipeline を返します。
func NewPipeline(synth PromptSynthesizer, runner Runner, model, negativePrompt string, opts ...PipelineOption) (*Pipeline, error) {
	if synth == nil {
		return nil, errors.New("PromptSynthesizer は必須です")
	}
	if runner == nil {
		return nil, errors.New("Runner は必須です")
	}
	p := &Pipeline{synth: synth, runner: runner, model: model, negative: negativePrompt}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate は回答のスナップショットから毎回新しい PipelineRequest を作って実行します。
// 途中の画像は再利用しません。
func (p *Pipeline) Generate(ctx context.Context, answers *domain.SessionAnswers) (*domain.PipelineResult, error) {
	snapshot := answers.Clone()

	prompt, err := p.synth.Synthesize(context.WithoutCancel(ctx), snapshot)
	if ctx.Err() != nil {
		return nil, ErrAbandoned
	}
	if err != nil {
		return nil, err
	}

	req, err := domain.NewPipelineRequest(prompt, p.negative, p.model, p.seed)
	if err != nil {
		return nil, failure.Wrap(failure.KindValidation, "build_request", err)
	}
	return p.runner.Run(ctx, req, snapshot.References)
}
