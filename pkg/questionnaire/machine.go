// Package questionnaire はストーリー、ビジュアル選択、最終確認の各ステップを線形に進めるステートマシンです。
package questionnaire

import (
	"errors"
	"fmt"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// MinVisualSelections はビジュアル選択ステップを抜けるのに必要な選択数です。
const MinVisualSelections = 2

var (
	ErrGateNotSatisfied = errors.New("現在のステップの完了条件を満たしていません")
	ErrAtFirstStep      = errors.New("最初のステップより前には戻れません")
	ErrComplete         = errors.New("質問票は完了済みです")
	ErrSkipNotAllowed   = errors.New("このステップはスキップできません")
)

// Phase はステートの種類です。
type Phase int

const (
	PhaseStory Phase = iota
	PhaseVisualSelection
	PhaseFinalReview
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseStory:
		return "story"
	case PhaseVisualSelection:
		return "visual_selection"
	case PhaseFinalReview:
		return "final_review"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText は Phase を名前で出力します。
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText は名前から Phase を復元します。
func (p *Phase) UnmarshalText(b []byte) error {
	for _, c := range []Phase{PhaseStory, PhaseVisualSelection, PhaseFinalReview, PhaseComplete} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("未知のフェーズです: %q", b)
}

// State は現在のステップです。Step は PhaseStory のときだけ意味を持ちます。
type State struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step"`
}

func (s State) String() string {
	if s.Phase == PhaseStory {
		return fmt.Sprintf("story(%d)", s.Step)
	}
	return s.Phase.String()
}

// Story は Story(i) ステートを返します。
func Story(i int) State { return State{Phase: PhaseStory, Step: i} }

var (
	VisualSelection = State{Phase: PhaseVisualSelection}
	FinalReview     = State{Phase: PhaseFinalReview}
	Complete        = State{Phase: PhaseComplete}
)

// Policy はプロダクト上の判断をまとめたものです。
type Policy struct {
	// AllowSkip が true のとき、Skip は SkippedAnswer を保存してゲートを通過させます。
	AllowSkip bool
}

// DefaultPolicy はスキップを許可します。
func DefaultPolicy() Policy {
	return Policy{AllowSkip: true}
}

// GateStatus は回答更新後の現在ステートとゲートの状態です。
type GateStatus struct {
	State      State `json:"state"`
	CanAdvance bool  `json:"can_advance"`
}

// Machine は SessionAnswers を所有するステートマシンです。
// 呼び出し側から見て同期的に動作し、並行呼び出しは想定しません。
type Machine struct {
	answers *domain.SessionAnswers
	policy  Policy
	state   State
}

// NewMachine は answers を操作する新しい Machine を返します。
func NewMachine(answers *domain.SessionAnswers, policy Policy) *Machine {
	m := &Machine{answers: answers, policy: policy}
	m.state = m.initial()
	return m
}

func (m *Machine) initial() State {
	if m.answers.StoryCount() > 0 {
		return Story(0)
	}
	return VisualSelection
}

// State は現在のステートです。
func (m *Machine) State() State { return m.state }

// Answers は所有している回答です。
func (m *Machine) Answers() *domain.SessionAnswers { return m.answers }

// IsComplete は終端ステートに到達したかを返します。
func (m *Machine) IsComplete() bool { return m.state.Phase == PhaseComplete }

// CanAdvanceFrom は任意のステートのゲート述語を評価します。
func (m *Machine) CanAdvanceFrom(s State) bool {
	switch s.Phase {
	case PhaseStory:
		return m.answers.IsStoryAnswered(s.Step)
	case PhaseVisualSelection:
		return m.answers.SelectionCount() >= MinVisualSelections
	case PhaseFinalReview:
		return true
	default:
		return false
	}
}

// CanAdvance は現在のステートのゲート述語です。
func (m *Machine) CanAdvance() bool {
	return m.CanAdvanceFrom(m.state)
}

func (m *Machine) status() GateStatus {
	return GateStatus{State: m.state, CanAdvance: m.CanAdvance()}
}

func (m *Machine) mutable() error {
	if m.IsComplete() {
		return ErrComplete
	}
	return nil
}

// SubmitAnswer は step 番目のストーリー回答を保存します。
func (m *Machine) SubmitAnswer(step int, value string) (GateStatus, error) {
	if err := m.mutable(); err != nil {
		return m.status(), err
	}
	if err := m.answers.SetStory(step, value); err != nil {
		return m.status(), err
	}
	return m.status(), nil
}

// Skip は step 番目を明示的にスキップします。
func (m *Machine) Skip(step int) (GateStatus, error) {
	if !m.policy.AllowSkip {
		return m.status(), ErrSkipNotAllowed
	}
	return m.SubmitAnswer(step, domain.SkippedAnswer)
}

// Select はビジュアル選択を追加します。
func (m *Machine) Select(c domain.VisualCategory, s domain.Selection) (GateStatus, error) {
	if err := m.mutable(); err != nil {
		return m.status(), err
	}
	if err := m.answers.Select(c, s); err != nil {
		return m.status(), err
	}
	return m.status(), nil
}

// Deselect はビジュアル選択を取り除きます。
func (m *Machine) Deselect(c domain.VisualCategory, tag string) (GateStatus, error) {
	if err := m.mutable(); err != nil {
		return m.status(), err
	}
	if err := m.answers.Deselect(c, tag); err != nil {
		return m.status(), err
	}
	return m.status(), nil
}

// SetClosingNote は最終確認カードの自由記述を保存します。
func (m *Machine) SetClosingNote(note string) (GateStatus, error) {
	if err := m.mutable(); err != nil {
		return m.status(), err
	}
	m.answers.ClosingNote = note
	return m.status(), nil
}

// AddReference は参照画像を追加します。
func (m *Machine) AddReference(ref domain.ReferenceImage) (domain.ReferenceImage, error) {
	if err := m.mutable(); err != nil {
		return domain.ReferenceImage{}, err
	}
	return m.answers.AddReference(ref)
}

// Advance はゲートを満たす場合だけ次のステートへ進みます。
// FinalReview から進むと Complete になります。
func (m *Machine) Advance() (State, error) {
	if m.IsComplete() {
		return m.state, ErrComplete
	}
	if !m.CanAdvance() {
		return m.state, fmt.Errorf("%w: %s", ErrGateNotSatisfied, m.state)
	}
	m.state = m.next(m.state)
	return m.state, nil
}

// Retreat は 1 つ前のステートへ戻ります。回答は消去しません。
// Complete は終端なので戻れません。
func (m *Machine) Retreat() (State, error) {
	if m.IsComplete() {
		return m.state, ErrComplete
	}
	if m.state == m.initial() {
		return m.state, ErrAtFirstStep
	}
	m.state = m.prev(m.state)
	return m.state, nil
}

func (m *Machine) next(s State) State {
	switch s.Phase {
	case PhaseStory:
		if s.Step+1 < m.answers.StoryCount() {
			return Story(s.Step + 1)
		}
		return VisualSelection
	case PhaseVisualSelection:
		return FinalReview
	default:
		return Complete
	}
}

func (m *Machine) prev(s State) State {
	switch s.Phase {
	case PhaseVisualSelection:
		if n := m.answers.StoryCount(); n > 0 {
			return Story(n - 1)
		}
		return s
	case PhaseFinalReview:
		return VisualSelection
	default:
		return Story(s.Step - 1)
	}
}
