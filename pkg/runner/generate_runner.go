package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/go-tattoo-kit/pkg/design"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

const (
	defaultRetryInterval   = 2 * time.Second
	defaultMaxRetryElapsed = time.Minute
)

// SessionFactory は新しいデザインセッションを作ります。
type SessionFactory interface {
	NewSession() (*design.Session, error)
}

// GenerateRunner は回答ファイルからセッションを組み立て、生成を実行します。
type GenerateRunner struct {
	factory    SessionFactory
	newBackOff func() backoff.BackOff
}

// Option は GenerateRunner の任意設定です。
type Option func(*GenerateRunner)

// WithBackOff はリトライ間隔の生成関数を差し替えます。
func WithBackOff(f func() backoff.BackOff) Option {
	return func(r *GenerateRunner) { r.newBackOff = f }
}

// NewGenerateRunner は GenerateRunner を返します。
func NewGenerateRunner(factory SessionFactory, opts ...Option) (*GenerateRunner, error) {
	if factory == nil {
		return nil, errors.New("SessionFactory は必須です")
	}
	r := &GenerateRunner{factory: factory, newBackOff: defaultBackOff}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInterval
	b.MaxElapsedTime = defaultMaxRetryElapsed
	return b
}

// Run は新しいセッションに回答を流し込み、FinalReview から生成を行います。
// リトライ可能な失敗は 1 回だけ自動でリトライします。
func (gr *GenerateRunner) Run(ctx context.Context, af *AnswerFile) (*design.Session, design.Outcome, error) {
	s, err := gr.factory.NewSession()
	if err != nil {
		return nil, design.Outcome{}, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	if err := Fill(ctx, s, af); err != nil {
		return s, design.Outcome{}, err
	}

	slog.InfoContext(ctx, "GenerateRunner: 生成を開始します", "session_id", s.ID())
	out, err := design.GenerateWithRetry(ctx, s, gr.newBackOff())
	if err != nil {
		return s, out, err
	}
	if out.Success {
		slog.InfoContext(ctx, "GenerateRunner: 生成が完了しました", "session_id", s.ID(), "design_id", out.DesignID)
	} else {
		slog.WarnContext(ctx, "GenerateRunner: 生成に失敗しました",
			"session_id", s.ID(),
			"kind", out.ErrorKind,
			"correlation_id", out.CorrelationID,
		)
	}
	return s, out, nil
}

// Fill は回答をセッションに入力し、ステートを FinalReview まで進めます。
// 途中でゲートを満たせない場合はそのステップを示すエラーを返します。
func Fill(ctx context.Context, s *design.Session, af *AnswerFile) error {
	if af == nil {
		return errors.New("回答ファイルは必須です")
	}
	steps := s.Answers().StoryCount()
	if len(af.Stories) > steps {
		return fmt.Errorf("ストーリー回答が多すぎます: %d 件 (質問は %d 件)", len(af.Stories), steps)
	}

	for i := range steps {
		value := ""
		if i < len(af.Stories) {
			value = af.Stories[i]
		}
		var err error
		if strings.TrimSpace(value) == "" {
			_, err = s.Skip(i)
		} else {
			_, err = s.SubmitAnswer(i, value)
		}
		if err != nil {
			return fmt.Errorf("ストーリー %d の入力に失敗しました: %w", i, err)
		}
		if _, _, err := s.Advance(ctx); err != nil {
			return fmt.Errorf("ストーリー %d から進めませんでした: %w", i, err)
		}
	}

	for _, c := range domain.VisualCategories {
		for _, tag := range af.Selections[c] {
			if _, err := s.Select(c, domain.Selection{Tag: tag}); err != nil {
				return fmt.Errorf("%s の選択に失敗しました: %w", c, err)
			}
		}
	}
	for _, spec := range af.References {
		ref, err := spec.referenceImage()
		if err != nil {
			return err
		}
		if _, err := s.AddReference(ref); err != nil {
			return fmt.Errorf("参照画像の追加に失敗しました: %w", err)
		}
	}
	if _, err := s.SetClosingNote(af.ClosingNote); err != nil {
		return err
	}
	if _, _, err := s.Advance(ctx); err != nil {
		return fmt.Errorf("ビジュアル選択から進めませんでした: %w", err)
	}
	if st := s.Snapshot().State; st != questionnaire.FinalReview {
		return fmt.Errorf("想定外のステートです: %s", st)
	}
	return nil
}
