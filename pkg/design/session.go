// Package design はプレゼンテーション層に公開するデザインセッションです。
// 質問票のステートマシンと生成パイプラインを 1 つのセッションとして束ね、有界リトライを適用します。
package design

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/generator"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"

	"github.com/google/uuid"
)

var (
	ErrGenerationPending = errors.New("生成はすでに実行中です")
	ErrAlreadyGenerated  = errors.New("このセッションはすでに生成を試行しています")
	ErrRetryUnavailable  = errors.New("リトライできる状態ではありません")
	ErrAbandoned         = errors.New("生成要求は放棄されました")
	ErrNoFollowUp        = errors.New("追加質問は設定されていません")
)

// DesignStore は完成デザインの保存先です。
type DesignStore interface {
	SaveDesign(ctx context.Context, rec domain.DesignRecord) (string, error)
}

// Publisher は完成画像を外部に書き出し、参照 URL を付けて返します。
type Publisher interface {
	Publish(ctx context.Context, sessionID string, result *domain.PipelineResult) (*domain.PipelineResult, error)
}

// FollowUpSource は追加質問の提供元です。
type FollowUpSource interface {
	FollowUp(ctx context.Context, answers *domain.SessionAnswers, step int) (prompts.FollowUp, error)
}

// Deps はセッションの依存です。Bank と Generator は必須です。
type Deps struct {
	Bank       *questionnaire.Bank
	Policy     questionnaire.Policy
	Generator  generator.Generator
	Classifier *failure.Classifier
	Store      DesignStore
	Publisher  Publisher
	FollowUps  FollowUpSource
	Retry      generator.RetryPolicy
}

// Snapshot はセッションの現在の状態です。
type Snapshot struct {
	ID             string              `json:"id"`
	State          questionnaire.State `json:"state"`
	StateName      string              `json:"state_name"`
	CanAdvance     bool                `json:"can_advance"`
	Status         Status              `json:"status"`
	Attempts       int                 `json:"attempts"`
	RetryAvailable bool                `json:"retry_available"`
	LastError      *failure.Record     `json:"last_error,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Session は 1 人分のデザインセッションです。メソッドは並行に呼ばれても安全です。
type Session struct {
	mu   sync.Mutex
	deps Deps

	id        string
	createdAt time.Time
	machine   *questionnaire.Machine

	status   Status
	attempts int
	last     *failure.Record
	result   *domain.PipelineResult
	epoch    uint64
}

// NewSession は新しいセッションを返します。
func NewSession(deps Deps) (*Session, error) {
	if deps.Bank == nil {
		return nil, errors.New("質問バンクは必須です")
	}
	if deps.Generator == nil {
		return nil, errors.New("Generator は必須です")
	}
	if deps.Classifier == nil {
		deps.Classifier = failure.NewClassifier(nil)
	}
	if deps.Retry.MaxAttempts <= 0 {
		deps.Retry = generator.DefaultRetryPolicy()
	}
	s := &Session{deps: deps, id: uuid.NewString(), createdAt: time.Now()}
	s.reset()
	return s, nil
}

func (s *Session) reset() {
	s.machine = questionnaire.NewMachine(s.deps.Bank.NewAnswers(), s.deps.Policy)
	s.status = StatusIdle
	s.attempts = 0
	s.last = nil
	s.result = nil
	s.epoch++
}

// ID はセッション ID です。
func (s *Session) ID() string { return s.id }

// NewDesign は回答とすべての結果を破棄して最初からやり直します。
// 実行中の試行があっても、その結果はこのセッションに書き込まれません。
func (s *Session) NewDesign() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return s.snapshotLocked()
}

// Snapshot は現在の状態を返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:             s.id,
		State:          s.machine.State(),
		StateName:      s.machine.State().String(),
		CanAdvance:     s.machine.CanAdvance(),
		Status:         s.status,
		Attempts:       s.attempts,
		RetryAvailable: s.retryAvailableLocked(),
		LastError:      s.last,
		CreatedAt:      s.createdAt,
	}
}

// Answers は現在の回答のコピーです。
func (s *Session) Answers() *domain.SessionAnswers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Answers().Clone()
}

// Result は成功した試行の結果です。無ければ nil です。
func (s *Session) Result() *domain.PipelineResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Question は step 番目のストーリー質問です。
func (s *Session) Question(step int) (questionnaire.Question, bool) {
	return s.deps.Bank.Question(step)
}

// SubmitAnswer はストーリー回答を保存し、ゲート状態を返します。
func (s *Session) SubmitAnswer(step int, value string) (questionnaire.GateStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.SubmitAnswer(step, value)
}

// Skip はストーリーステップを明示的にスキップします。
func (s *Session) Skip(step int) (questionnaire.GateStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Skip(step)
}

// Select はビジュアル選択を追加します。
func (s *Session) Select(c domain.VisualCategory, sel domain.Selection) (questionnaire.GateStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Select(c, sel)
}

// Deselect はビジュアル選択を外します。
func (s *Session) Deselect(c domain.VisualCategory, tag string) (questionnaire.GateStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Deselect(c, tag)
}

// SetClosingNote はクロージングノートを保存します。
func (s *Session) SetClosingNote(note string) (questionnaire.GateStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.SetClosingNote(note)
}

// AddReference は参照画像を追加します。
func (s *Session) AddReference(ref domain.ReferenceImage) (domain.ReferenceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.AddReference(ref)
}

// CanAdvance は現在のステートのゲートを評価します。
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.CanAdvance()
}

// CanAdvanceFrom は任意のステートのゲートを評価します。
func (s *Session) CanAdvanceFrom(st questionnaire.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.CanAdvanceFrom(st)
}

// Retreat は 1 つ前のステップに戻ります。
func (s *Session) Retreat() (questionnaire.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Retreat()
}

// Advance は次のステップへ進みます。FinalReview から進んだ場合は生成を開始し、その Outcome を返します。
// ゲートを満たさない場合は拒否され、生成は呼ばれません。
func (s *Session) Advance(ctx context.Context) (questionnaire.State, *Outcome, error) {
	s.mu.Lock()
	next, err := s.machine.Advance()
	if err != nil || next != questionnaire.Complete {
		s.mu.Unlock()
		return next, nil, err
	}
	if s.status != StatusIdle {
		s.mu.Unlock()
		return next, nil, nil
	}
	out, err := s.attemptLocked(ctx)
	if err != nil {
		return next, nil, err
	}
	return next, &out, nil
}

// FollowUp は step 番目の回答に対する追加質問を返します。
func (s *Session) FollowUp(ctx context.Context, step int) (prompts.FollowUp, error) {
	if s.deps.FollowUps == nil {
		return prompts.FollowUp{}, ErrNoFollowUp
	}
	answers := s.Answers()
	return s.deps.FollowUps.FollowUp(domain.WithSessionID(ctx, s.id), answers, step)
}

// Generate は現在の回答で生成を 1 回試行します。生成前の状態でだけ呼べます。
// 失敗は Outcome で返し、error は呼び出し自体を拒否した場合だけです。
func (s *Session) Generate(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	switch s.status {
	case StatusIdle:
		return s.attemptLocked(ctx)
	case StatusPending:
		s.mu.Unlock()
		return Outcome{}, ErrGenerationPending
	default:
		s.mu.Unlock()
		return Outcome{}, ErrAlreadyGenerated
	}
}

// Retry は失敗した試行を 1 回だけやり直します。同じ回答から PipelineRequest を作り直します。
// リトライできない場合は外部呼び出しを行わずに ErrRetryUnavailable を返します。
func (s *Session) Retry(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if !s.retryAvailableLocked() {
		s.mu.Unlock()
		return Outcome{}, ErrRetryUnavailable
	}
	return s.attemptLocked(ctx)
}

func (s *Session) retryAvailableLocked() bool {
	return s.status == StatusFailed && s.last != nil && s.deps.Retry.CanRetry(s.attempts, *s.last)
}

// attemptLocked は s.mu を保持した状態で呼ばれ、外部呼び出しの間はロックを外します。戻るときはロックを解放済みです。
func (s *Session) attemptLocked(ctx context.Context) (Outcome, error) {
	prevStatus := s.status
	s.status = StatusPending
	s.attempts++
	epoch := s.epoch
	answers := s.machine.Answers().Clone()
	attempt := s.attempts
	s.mu.Unlock()

	ctx = domain.WithSessionID(ctx, s.id)
	result, designID, err := s.run(ctx, epoch, answers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return Outcome{}, ErrAbandoned
	}
	if errors.Is(err, generator.ErrAbandoned) {
		s.status = prevStatus
		s.attempts--
		return Outcome{}, ErrAbandoned
	}
	if err != nil {
		rec := s.deps.Classifier.Classify(ctx, err, "session_id", s.id, "attempt", attempt)
		s.last = &rec
		s.status = StatusFailed
		if !s.deps.Retry.CanRetry(s.attempts, rec) {
			s.status = StatusTerminal
		}
		return failureOutcome(rec, s.status == StatusFailed), nil
	}

	s.result = result
	s.last = nil
	s.status = StatusSucceeded
	return successOutcome(result, designID), nil
}

// run は 1 試行分の生成、検証、公開、保存を行います。
// 公開と保存は放棄されていない試行だけが行い、始めたら呼び出し側のキャンセルでは止めません。
func (s *Session) run(ctx context.Context, epoch uint64, answers *domain.SessionAnswers) (*domain.PipelineResult, string, error) {
	result, err := s.deps.Generator.Generate(ctx, answers)
	if err != nil {
		return nil, "", err
	}
	if err := result.Validate(); err != nil {
		return nil, "", failure.Wrap(failure.KindValidation, "validate_result", err)
	}
	if s.abandoned(ctx, epoch) {
		return nil, "", generator.ErrAbandoned
	}

	persistCtx := context.WithoutCancel(ctx)
	if s.deps.Publisher != nil {
		published, err := s.deps.Publisher.Publish(persistCtx, s.id, result)
		if err != nil {
			return nil, "", failure.Wrap(failure.KindPersistence, "publish", err)
		}
		result = published
	}

	var designID string
	if s.deps.Store != nil {
		designID, err = s.deps.Store.SaveDesign(persistCtx, domain.DesignRecord{
			ID:        uuid.NewString(),
			SessionID: s.id,
			Prompt:    result.Prompt,
			Answers:   answers,
			Images:    result.Images,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return nil, "", failure.Wrap(failure.KindPersistence, "save_design", err)
		}
	}
	return result, designID, nil
}

// abandoned は呼び出し側が離れたか、NewDesign で試行が無効になったかを返します。
func (s *Session) abandoned(ctx context.Context, epoch uint64) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch != epoch
}
