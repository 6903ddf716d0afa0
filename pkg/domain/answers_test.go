package domain

import (
	"errors"
	"testing"
)

func TestNewSessionAnswers(t *testing.T) {
	a := NewSessionAnswers(6)
	if err := a.Validate(6); err != nil {
		t.Fatalf("初期状態で不変条件を満たしていないのだ: %v", err)
	}
	if a.StoryCount() != 6 {
		t.Errorf("ステップ数が違うのだ: %d", a.StoryCount())
	}
	if err := a.Validate(5); err == nil {
		t.Error("ステップ数の不一致を検出できていないのだ")
	}
}

func TestSessionAnswers_SetStory(t *testing.T) {
	a := NewSessionAnswers(2)
	if err := a.SetStory(2, "x"); !errors.Is(err, ErrStepOutOfRange) {
		t.Errorf("範囲外を拒否すべきなのだ: %v", err)
	}
	if err := a.SetStory(-1, "x"); !errors.Is(err, ErrStepOutOfRange) {
		t.Errorf("負のインデックスを拒否すべきなのだ: %v", err)
	}

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"通常の回答", "the ocean", true},
		{"空文字", "", false},
		{"空白のみ", "  \t", false},
		{"スキップ印", SkippedAnswer, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.SetStory(0, tt.value); err != nil {
				t.Fatalf("SetStory failed: %v", err)
			}
			if got := a.IsStoryAnswered(0); got != tt.want {
				t.Errorf("IsStoryAnswered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionAnswers_Selections(t *testing.T) {
	a := NewSessionAnswers(1)

	if err := a.Select(CategoryStyle, Selection{Tag: "blackwork"}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	// 同じタグは集合として 1 つ
	if err := a.Select(CategoryStyle, Selection{Tag: "blackwork", ImageURL: "u"}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := a.Select(CategoryColor, Selection{Tag: "red"}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if got := a.SelectionCount(); got != 2 {
		t.Errorf("SelectionCount = %d, want 2", got)
	}
	if err := a.Select("texture", Selection{Tag: "x"}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("未知カテゴリを拒否すべきなのだ: %v", err)
	}
	if err := a.Select(CategorySize, Selection{Tag: " "}); !errors.Is(err, ErrEmptyTag) {
		t.Errorf("空タグを拒否すべきなのだ: %v", err)
	}

	if err := a.Deselect(CategoryStyle, "blackwork"); err != nil {
		t.Fatalf("Deselect failed: %v", err)
	}
	if got := a.SelectionCount(); got != 1 {
		t.Errorf("SelectionCount = %d, want 1", got)
	}
	if err := a.Validate(1); err != nil {
		t.Errorf("カテゴリキーが崩れているのだ: %v", err)
	}
}

func TestParseVisualCategory(t *testing.T) {
	if c, err := ParseVisualCategory(" Placement "); err != nil || c != CategoryPlacement {
		t.Errorf("ParseVisualCategory = %q, %v", c, err)
	}
	if _, err := ParseVisualCategory("mood"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("want ErrUnknownCategory, got %v", err)
	}
}

func TestSessionAnswers_CloneIsIndependent(t *testing.T) {
	a := NewSessionAnswers(2)
	_ = a.SetStory(0, "phoenix")
	_ = a.Select(CategoryColor, Selection{Tag: "red"})
	if _, err := a.AddReference(ReferenceImage{Data: []byte{1, 2}}); err != nil {
		t.Fatalf("AddReference failed: %v", err)
	}

	c := a.Clone()
	_ = a.SetStory(0, "changed")
	_ = a.Select(CategoryColor, Selection{Tag: "blue"})
	a.References[0].Data[0] = 9

	if c.Story(0) != "phoenix" {
		t.Errorf("クローンの回答が変わってしまったのだ: %q", c.Story(0))
	}
	if len(c.Selections[CategoryColor]) != 1 {
		t.Errorf("クローンの選択が変わってしまったのだ: %v", c.Selections[CategoryColor])
	}
	if c.References[0].Data[0] != 1 {
		t.Error("クローンの参照画像が共有されているのだ")
	}
	if c.References[0].ID == "" {
		t.Error("参照画像に ID が振られていないのだ")
	}
}

func TestSessionAnswers_AddReferenceRequiresPayload(t *testing.T) {
	a := NewSessionAnswers(1)
	if _, err := a.AddReference(ReferenceImage{Label: "empty"}); err == nil {
		t.Error("データも URL もない参照画像を受け付けてしまったのだ")
	}
}
