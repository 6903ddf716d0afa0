package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// VisualCategory はビジュアル選択カードのカテゴリ ID です。
type VisualCategory string

const (
	CategoryStyle     VisualCategory = "style"
	CategoryColor     VisualCategory = "color"
	CategorySize      VisualCategory = "size"
	CategoryPlacement VisualCategory = "placement"
)

// VisualCategories は固定された 4 カテゴリを表示順で返します。
var VisualCategories = []VisualCategory{CategoryStyle, CategoryColor, CategorySize, CategoryPlacement}

// SkippedAnswer は「スキップ」を選んだストーリーステップに保存される印です。
// 空文字ではないためゲートは通過しますが、プロンプト合成では無視されます。
const SkippedAnswer = "[skipped]"

var (
	ErrStepOutOfRange  = errors.New("ストーリーステップの範囲外です")
	ErrUnknownCategory = errors.New("未知のビジュアルカテゴリです")
	ErrEmptyTag        = errors.New("タグが空です")
	ErrEmptyReference  = errors.New("参照画像にはデータか URL が必要です")
)

// ParseVisualCategory は文字列を VisualCategory に変換します。
func ParseVisualCategory(s string) (VisualCategory, error) {
	c := VisualCategory(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(VisualCategories, c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Selection はビジュアル選択で選ばれたタグと参照画像の組です。
type Selection struct {
	Tag      string `json:"tag" yaml:"tag"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// ReferenceImage はアップロードされた参照画像です。Data か URL のどちらかを持ちます。
type ReferenceImage struct {
	ID       string `json:"id" yaml:"id"`
	Data     []byte `json:"-" yaml:"-"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// SessionAnswers は 1 セッション分の回答を保持するだけのデータ入れ物です。
type SessionAnswers struct {
	Stories     []string                       `json:"stories" yaml:"stories"`
	Selections  map[VisualCategory][]Selection `json:"selections" yaml:"selections"`
	ClosingNote string                         `json:"closing_note,omitempty" yaml:"closing_note,omitempty"`
	References  []ReferenceImage               `json:"references,omitempty" yaml:"references,omitempty"`
}

// NewSessionAnswers は storySteps 個の空回答と 4 カテゴリの空選択で初期化します。
func NewSessionAnswers(storySteps int) *SessionAnswers {
	sel := make(map[VisualCategory][]Selection, len(VisualCategories))
	for _, c := range VisualCategories {
		sel[c] = []Selection{}
	}
	return &SessionAnswers{
		Stories:    make([]string, storySteps),
		Selections: sel,
	}
}

// StoryCount は設定されたストーリーステップ数を返します。
func (a *SessionAnswers) StoryCount() int {
	return len(a.Stories)
}

// SetStory は i 番目のストーリー回答を保存します。
func (a *SessionAnswers) SetStory(i int, value string) error {
	if i < 0 || i >= len(a.Stories) {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, i)
	}
	a.Stories[i] = value
	return nil
}

// Story は i 番目の回答を返します。範囲外なら空文字です。
func (a *SessionAnswers) Story(i int) string {
	if i < 0 || i >= len(a.Stories) {
		return ""
	}
	return a.Stories[i]
}

// IsStoryAnswered は i 番目の回答が空白以外を含むかを返します。
func (a *SessionAnswers) IsStoryAnswered(i int) bool {
	return strings.TrimSpace(a.Story(i)) != ""
}

// Select はカテゴリにタグを追加します。同じタグは集合として 1 つに保たれます。
func (a *SessionAnswers) Select(c VisualCategory, s Selection) error {
	if !slices.Contains(VisualCategories, c) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	s.Tag = strings.TrimSpace(s.Tag)
	if s.Tag == "" {
		return ErrEmptyTag
	}
	for i, cur := range a.Selections[c] {
		if cur.Tag == s.Tag {
			a.Selections[c][i] = s
			return nil
		}
	}
	a.Selections[c] = append(a.Selections[c], s)
	return nil
}

// Deselect はカテゴリからタグを取り除きます。存在しなければ何もしません。
func (a *SessionAnswers) Deselect(c VisualCategory, tag string) error {
	if !slices.Contains(VisualCategories, c) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	a.Selections[c] = slices.DeleteFunc(a.Selections[c], func(s Selection) bool {
		return s.Tag == tag
	})
	return nil
}

// SelectionCount は 4 カテゴリ全体での選択数の合計です。
func (a *SessionAnswers) SelectionCount() int {
	n := 0
	for _, c := range VisualCategories {
		n += len(a.Selections[c])
	}
	return n
}

// Tags はカテゴリの選択タグを選択順で返します。
func (a *SessionAnswers) Tags(c VisualCategory) []string {
	tags := make([]string, 0, len(a.Selections[c]))
	for _, s := range a.Selections[c] {
		tags = append(tags, s.Tag)
	}
	return tags
}

// AddReference は参照画像を追加し、ID を払い出して返します。
func (a *SessionAnswers) AddReference(ref ReferenceImage) (ReferenceImage, error) {
	if len(ref.Data) == 0 && ref.URL == "" {
		return ReferenceImage{}, ErrEmptyReference
	}
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	a.References = append(a.References, ref)
	return ref, nil
}

// Validate はステップ数とカテゴリキーの不変条件を検証します。
func (a *SessionAnswers) Validate(storySteps int) error {
	if len(a.Stories) != storySteps {
		return fmt.Errorf("ストーリー回答数が %d ではなく %d です", storySteps, len(a.Stories))
	}
	if len(a.Selections) != len(VisualCategories) {
		return fmt.Errorf("ビジュアルカテゴリ数が不正です: %d", len(a.Selections))
	}
	for _, c := range VisualCategories {
		if _, ok := a.Selections[c]; !ok {
			return fmt.Errorf("%w: %q が存在しません", ErrUnknownCategory, c)
		}
	}
	return nil
}

// Clone は生成試行ごとに読み取り専用で使うためのディープコピーを返します。
func (a *SessionAnswers) Clone() *SessionAnswers {
	out := &SessionAnswers{
		Stories:     slices.Clone(a.Stories),
		Selections:  make(map[VisualCategory][]Selection, len(a.Selections)),
		ClosingNote: a.ClosingNote,
	}
	for c, s := range a.Selections {
		out.Selections[c] = slices.Clone(s)
	}
	for _, r := range a.References {
		r.Data = slices.Clone(r.Data)
		out.References = append(out.References, r)
	}
	return out
}
