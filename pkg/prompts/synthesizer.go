package prompts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/llm"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	enhanceSystem  = "You write vivid, concise prompts for a tattoo image generator."
	followUpSystem = "You are a tattoo artist. Reply with a single question."

	followUpCacheExpiration = 30 * time.Minute
	followUpCacheCleanup    = 1 * time.Hour

	// OperationPrompt は利用記録上のプロンプト強化の操作名です。
	OperationPrompt = "prompt"
	// OperationFollowUp は利用記録上の追加質問の操作名です。
	OperationFollowUp = "followup"
)

// ErrNothingToCompose は回答からプロンプトを組み立てられないことを示します。
var ErrNothingToCompose = errors.New("プロンプトにできる回答がありません")

// FollowUpSource は追加質問の出どころです。
type FollowUpSource string

const (
	SourceLLM      FollowUpSource = "llm"
	SourceFallback FollowUpSource = "fallback"
)

// FollowUp は質問票の途中で提示する追加質問です。
type FollowUp struct {
	Step     int            `json:"step"`
	Question string         `json:"question"`
	Source   FollowUpSource `json:"source"`
}

// UsageRecorder は外部呼び出しの利用記録の保存先です。
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
}

// Synthesizer は回答から生成プロンプトを作ります。
type Synthesizer struct {
	provider   llm.Provider
	templates  *promptTemplates
	bank       *questionnaire.Bank
	classifier *failure.Classifier
	cache      *cache.Cache
	usage      UsageRecorder
	credits    float64
}

// SynthesizerOption は Synthesizer の任意設定です。
type SynthesizerOption func(*Synthesizer)

// WithUsageRecorder は言語モデル呼び出しごとに利用記録を残します。
func WithUsageRecorder(u UsageRecorder, creditsPerCall float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.usage = u
		s.credits = creditsPerCall
	}
}

// WithClassifier は失敗の分類に使う Classifier を差し替えます。
func WithClassifier(c *failure.Classifier) SynthesizerOption {
	return func(s *Synthesizer) { s.classifier = c }
}

// NewSynthesizer は Synthesizer を返します。provider が nil ならローカル合成だけを行います。
func NewSynthesizer(provider llm.Provider, bank *questionnaire.Bank, opts ...SynthesizerOption) (*Synthesizer, error) {
	if bank == nil {
		return nil, errors.New("質問バンクは必須です")
	}
	templates, err := parsePromptTemplates()
	if err != nil {
		return nil, err
	}
	s := &Synthesizer{
		provider:  provider,
		templates: templates,
		bank:      bank,
		cache:     cache.New(followUpCacheExpiration, followUpCacheCleanup),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = failure.NewClassifier(nil)
	}
	return s, nil
}

// UsesLLM は言語モデルが設定されているかを返します。
func (s *Synthesizer) UsesLLM() bool {
	return s.provider != nil
}

// Synthesize は最終生成用のプロンプトを返します。
// 言語モデルが設定されている場合は必ずそれを使い、失敗したらローカル合成に落とさずエラーを返します。
func (s *Synthesizer) Synthesize(ctx context.Context, a *domain.SessionAnswers) (string, error) {
	composed := Compose(a)
	if composed == "" {
		return "", failure.Wrap(failure.KindValidation, "prompt_compose", ErrNothingToCompose)
	}
	if s.provider == nil {
		return composed, nil
	}

	p, err := s.templates.Enhance(EnhanceData{
		Stories:     storyFragments(a),
		Tags:        tagLines(a),
		ClosingNote: strings.TrimSpace(a.ClosingNote),
		Composed:    composed,
	})
	if err != nil {
		return "", failure.Wrap(failure.KindGeneration, "prompt_template", err)
	}

	start := time.Now()
	text, err := s.provider.Generate(ctx, llm.Request{System: enhanceSystem, Prompt: p})
	if err != nil {
		kind := failure.KindExternalCall
		if errors.Is(err, llm.ErrEmptyResponse) {
			kind = failure.KindGeneration
		}
		err = failure.Wrap(kind, "prompt_enhance", err)
	}
	s.record(ctx, OperationPrompt, start, err)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "生成プロンプトを強化しました", "provider", s.provider.Name(), "length", len(text))
	return text, nil
}

// FollowUp は step 番目の回答に対する追加質問を返します。
// 言語モデルが使えない場合は質問バンクの静的な質問を返します。これが唯一のフォールバック経路です。
func (s *Synthesizer) FollowUp(ctx context.Context, a *domain.SessionAnswers, step int) (FollowUp, error) {
	q, ok := s.bank.Question(step)
	if !ok {
		return FollowUp{}, fmt.Errorf("%w: %d", domain.ErrStepOutOfRange, step)
	}
	answer := strings.TrimSpace(a.Story(step))
	fallback := FollowUp{Step: step, Question: s.bank.FallbackFollowUp(step, len(answer)), Source: SourceFallback}

	if s.provider == nil || answer == "" || answer == domain.SkippedAnswer {
		return fallback, nil
	}

	key := followUpKey(a, step)
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.(FollowUp); ok {
			return cached, nil
		}
	}

	var previous []string
	for i := 0; i < step; i++ {
		if v := strings.TrimSpace(a.Story(i)); v != "" && v != domain.SkippedAnswer {
			previous = append(previous, v)
		}
	}
	p, err := s.templates.FollowUp(FollowUpData{Question: q.Prompt, Answer: answer, Previous: previous})
	if err != nil {
		s.classifier.Classify(ctx, failure.Wrap(failure.KindGeneration, "followup_template", err), "step", step)
		return fallback, nil
	}

	start := time.Now()
	text, err := s.provider.Generate(ctx, llm.Request{System: followUpSystem, Prompt: p})
	if err != nil {
		err = failure.Wrap(failure.KindExternalCall, "followup", err)
	}
	s.record(ctx, OperationFollowUp, start, err)
	if err != nil {
		s.classifier.Classify(ctx, err, "step", step, "fallback", true)
		return fallback, nil
	}

	out := FollowUp{Step: step, Question: text, Source: SourceLLM}
	s.cache.SetDefault(key, out)
	return out, nil
}

func (s *Synthesizer) record(ctx context.Context, op string, start time.Time, callErr error) {
	if s.usage == nil {
		return
	}
	rec := domain.UsageRecord{
		ID:        uuid.NewString(),
		SessionID: domain.SessionIDFrom(ctx),
		Operation: op,
		Provider:  s.provider.Name(),
		Credits:   s.credits,
		Success:   callErr == nil,
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}
	if callErr != nil {
		rec.ErrorKind = string(failure.KindOf(callErr))
	}
	if err := s.usage.RecordUsage(ctx, rec); err != nil {
		s.classifier.Classify(ctx, failure.Wrap(failure.KindPersistence, "record_usage", err), "operation", op)
	}
}

func followUpKey(a *domain.SessionAnswers, step int) string {
	h := sha256.New()
	for i := 0; i <= step; i++ {
		h.Write([]byte(a.Story(i)))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d:%s", step, hex.EncodeToString(h.Sum(nil)))
}
