package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type moderated struct{}

func (moderated) Error() string  { return "status 403" }
func (moderated) Terminal() bool { return true }

func TestKindPolicies(t *testing.T) {
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			if k.UserMessage() == "" {
				t.Error("ユーザー向けメッセージが空なのだ")
			}
		})
	}

	tests := []struct {
		kind Kind
		want bool
	}{
		{KindGeneration, true},
		{KindExternalCall, true},
		{KindPersistence, true},
		{KindStyleStage, true},
		{KindValidation, false},
		{KindUnknown, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}

	if Kind("BOGUS").UserMessage() != KindUnknown.UserMessage() {
		t.Error("未知の種別は UNKNOWN のメッセージを返すべきなのだ")
	}
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"未分類", base, KindUnknown},
		{"直接", Wrap(KindStyleStage, "style", base), KindStyleStage},
		{"fmt.Errorf でさらに包む", fmt.Errorf("run color: %w", Wrap(KindExternalCall, "base", base)), KindExternalCall},
		{"外側が優先", Wrap(KindValidation, "result", Wrap(KindGeneration, "base", base)), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}

	if Wrap(KindGeneration, "x", nil) != nil {
		t.Error("nil を包むと nil になるべきなのだ")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(Wrap(KindExternalCall, "base", moderated{})) {
		t.Error("内側のモデレーション拒否を検出できていないのだ")
	}
	if !IsTerminal(WrapTerminal(KindGeneration, "base", errors.New("x"))) {
		t.Error("WrapTerminal が終端扱いになっていないのだ")
	}
	if IsTerminal(Wrap(KindExternalCall, "base", errors.New("x"))) {
		t.Error("通常の失敗が終端扱いになっているのだ")
	}
}

func TestClassifier_Classify(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	c := NewClassifier(logger)

	err := fmt.Errorf("stencil run: %w", Wrap(KindExternalCall, "refine", moderated{}))
	rec := c.Classify(context.Background(), err, "session_id", "s-1")

	if rec.Kind != KindExternalCall {
		t.Errorf("Kind = %s", rec.Kind)
	}
	if rec.Retryable {
		t.Error("モデレーション拒否はリトライ不可であるべきなのだ")
	}
	if !rec.Terminal {
		t.Error("Terminal が立っていないのだ")
	}
	if rec.CorrelationID == "" || rec.Stack == "" || rec.Timestamp.IsZero() {
		t.Errorf("記録が不完全なのだ: %+v", rec)
	}
	if strings.Contains(rec.UserMessage, "403") {
		t.Error("ユーザー向けメッセージに技術情報が漏れているのだ")
	}

	var logged map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("ログが JSON ではないのだ: %v (%s)", err, buf.String())
	}
	if logged["correlation_id"] != rec.CorrelationID {
		t.Errorf("ログの相関 ID が一致しないのだ: %v", logged["correlation_id"])
	}
	if logged["session_id"] != "s-1" {
		t.Errorf("文脈属性がログに無いのだ: %v", logged)
	}
	if logged["stack"] == "" {
		t.Error("スタックがログに無いのだ")
	}
	if !strings.Contains(logged["error"].(string), "403") {
		t.Errorf("技術メッセージがログに無いのだ: %v", logged["error"])
	}
}

func TestClassifier_NilError(t *testing.T) {
	var buf bytes.Buffer
	c := NewClassifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if rec := c.Classify(context.Background(), nil); rec.Kind != "" {
		t.Errorf("nil エラーで記録が作られたのだ: %+v", rec)
	}
	if buf.Len() != 0 {
		t.Error("nil エラーでログが出たのだ")
	}
}

func TestIsTerminal_Joined(t *testing.T) {
	joined := errors.Join(
		Wrap(KindGeneration, "color", errors.New("x")),
		fmt.Errorf("stencil: %w", Wrap(KindExternalCall, "base", moderated{})),
	)
	if !IsTerminal(joined) {
		t.Error("Join の中のモデレーション拒否を検出できていないのだ")
	}
	if KindOf(joined) != KindGeneration {
		t.Errorf("KindOf(joined) = %s", KindOf(joined))
	}
}
