package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/imaging"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrAbandoned は呼び出し側が結果を待たずに離れたことを示します。
// 実行中の外部呼び出しは完了させますが、その結果は返しません。
var ErrAbandoned = errors.New("生成要求は呼び出し側により放棄されました")

// UsageRecorder は外部呼び出しの利用記録の保存先です。
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
}

// ReferenceFetcher は参照画像 URL を取得します。
type ReferenceFetcher interface {
	Fetch(ctx context.Context, url string) (imaging.FetchedImage, error)
}

// Orchestrator は color と stencil の 2 本の実行を並行に行い、結果を検証します。
type Orchestrator struct {
	service    imaging.Service
	opts       Options
	stages     []Stage
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	fetcher    ReferenceFetcher
	usage      UsageRecorder
	classifier *failure.Classifier
}

// Option は Orchestrator の任意の依存です。
type Option func(*Orchestrator)

// WithFetcher は URL 参照画像の取得に使う fetcher を設定します。
func WithFetcher(f ReferenceFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithUsage は呼び出しごとの利用記録先を設定します。
func WithUsage(u UsageRecorder) Option {
	return func(o *Orchestrator) { o.usage = u }
}

// WithClassifierOption は利用記録の保存失敗などを分類する Classifier を設定します。
func WithClassifierOption(c *failure.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// NewOrchestrator は Orchestrator を初期化します。
func NewOrchestrator(service imaging.Service, opts Options, deps ...Option) (*Orchestrator, error) {
	if service == nil {
		return nil, errors.New("imaging.Service は必須です")
	}
	if len(opts.Runs) == 0 {
		opts.Runs = DefaultRuns()
	}
	o := &Orchestrator{
		service: service,
		opts:    opts,
		stages:  opts.Stages(),
	}
	if opts.MaxConcurrentCalls > 0 {
		o.sem = semaphore.NewWeighted(opts.MaxConcurrentCalls)
	}
	if opts.RateInterval > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Every(opts.RateInterval), burst)
	}
	for _, d := range deps {
		d(o)
	}
	if o.classifier == nil {
		o.classifier = failure.NewClassifier(nil)
	}
	return o, nil
}

// Stages は実行されるステージ一覧です。
func (o *Orchestrator) Stages() []Stage {
	return append([]Stage(nil), o.stages...)
}

// Run は req から 2 本の実行を行い、color 1 枚 + stencil 1 枚の検証済み結果を返します。
// 外部呼び出しは ctx のキャンセルでは中断されず、キャンセル後は ErrAbandoned を返します。
func (o *Orchestrator) Run(ctx context.Context, req domain.PipelineRequest, refs []domain.ReferenceImage) (*domain.PipelineResult, error) {
	callCtx := context.WithoutCancel(ctx)
	start := time.Now()

	reference, err := o.referenceImage(callCtx, refs)
	if err != nil {
		return nil, err
	}

	runs := o.opts.Runs
	images := make([]domain.GeneratedImage, len(runs))
	errs := make([]error, len(runs))

	var eg errgroup.Group
	for i, run := range runs {
		eg.Go(func() error {
			img, err := o.execute(callCtx, req, run, reference)
			if err != nil {
				errs[i] = fmt.Errorf("%s run: %w", run.Kind, err)
				return errs[i]
			}
			images[i] = img
			return nil
		})
	}
	waitErr := eg.Wait()

	if ctx.Err() != nil {
		slog.WarnContext(ctx, "放棄された生成要求の結果を破棄します", "session_id", domain.SessionIDFrom(ctx))
		return nil, ErrAbandoned
	}
	if waitErr != nil {
		return nil, errors.Join(errs...)
	}

	result := &domain.PipelineResult{Images: images, Prompt: req.Prompt()}
	if err := result.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindValidation, "validate_result", err)
	}

	slog.InfoContext(ctx, "デザイン画像の生成が完了しました",
		"session_id", domain.SessionIDFrom(ctx),
		"images", len(result.Images),
		"duration", time.Since(start))
	return result, nil
}

// execute は 1 本の実行の全ステージを順番に行います。各ステージは前段の出力画像を入力にします。
func (o *Orchestrator) execute(ctx context.Context, req domain.PipelineRequest, run RunSpec, reference []byte) (domain.GeneratedImage, error) {
	logger := slog.With("run", run.Kind, "session_id", domain.SessionIDFrom(ctx))
	in := StageInput{
		Prompt:         prompts.JoinPrompt(req.Prompt(), run.Bias),
		NegativePrompt: prompts.JoinPrompt(req.NegativePrompt(), run.Negative),
		Model:          req.Model(),
	}
	if seed, ok := req.Seed(); ok {
		in.Seed = &seed
	}

	var out StageOutput
	trace := make([]domain.StageTrace, 0, len(o.stages))
	for _, st := range o.stages {
		if st.NeedsImage() {
			in.Image = out.Image
		}
		in.Control = nil
		if st.UseReference {
			in.Control = reference
		}

		var err error
		out, err = o.call(ctx, st, in, run)
		if err != nil {
			logger.Error("ステージが失敗しました", "stage", st.Name, "error", err)
			return domain.GeneratedImage{}, err
		}
		// シードは後続ステージへ引き継ぐ
		in.Seed = &out.Seed
		trace = append(trace, domain.StageTrace{Stage: string(st.Name), Seed: out.Seed, FinishReason: out.FinishReason})
	}

	return domain.GeneratedImage{
		ID:           uuid.NewString(),
		Kind:         run.Kind,
		Label:        run.Label,
		Data:         out.Image,
		MimeType:     out.MimeType,
		Seed:         out.Seed,
		FinishReason: out.FinishReason,
		Trace:        trace,
	}, nil
}

// call は同時実行数とレートを制御しつつ 1 ステージを実行し、利用記録を残します。
func (o *Orchestrator) call(ctx context.Context, st Stage, in StageInput, run RunSpec) (StageOutput, error) {
	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return StageOutput{}, failure.Wrap(failure.KindUnknown, string(st.Name), err)
		}
		defer o.sem.Release(1)
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return StageOutput{}, failure.Wrap(failure.KindUnknown, string(st.Name), err)
		}
	}

	start := time.Now()
	out, err := st.Execute(ctx, o.service, in)
	duration := time.Since(start)

	slog.Debug("ステージを実行しました",
		"run", run.Kind,
		"stage", st.Name,
		"seed", out.Seed,
		"finish_reason", out.FinishReason,
		"duration", duration)

	o.record(ctx, st, run, in.Model, duration, err)
	return out, err
}

func (o *Orchestrator) record(ctx context.Context, st Stage, run RunSpec, model string, d time.Duration, callErr error) {
	if o.usage == nil {
		return
	}
	rec := domain.UsageRecord{
		ID:        uuid.NewString(),
		SessionID: domain.SessionIDFrom(ctx),
		Operation: string(st.Name),
		Provider:  "image:" + string(st.Operation),
		Model:     model,
		Kind:      string(run.Kind),
		Credits:   o.opts.StageCredits[string(st.Name)],
		Success:   callErr == nil,
		Duration:  d,
		CreatedAt: time.Now(),
	}
	if callErr != nil {
		rec.ErrorKind = string(failure.KindOf(callErr))
	}
	if err := o.usage.RecordUsage(ctx, rec); err != nil {
		o.classifier.Classify(ctx, failure.Wrap(failure.KindPersistence, "record_usage", err), "stage", st.Name)
	}
}

// referenceImage は構図制御ステージで使う最初の参照画像を返します。
func (o *Orchestrator) referenceImage(ctx context.Context, refs []domain.ReferenceImage) ([]byte, error) {
	if !o.opts.StructureEnabled || len(refs) == 0 {
		return nil, nil
	}
	ref := refs[0]
	if len(ref.Data) > 0 {
		return ref.Data, nil
	}
	if o.fetcher == nil {
		return nil, failure.Wrap(failure.KindValidation, "reference_fetch", fmt.Errorf("URL 参照画像を取得できません: %s", ref.URL))
	}
	img, err := o.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, failure.Wrap(failure.KindExternalCall, "reference_fetch", err)
	}
	return img.Data, nil
}
