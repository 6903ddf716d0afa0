package publisher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

func TestDesignPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDesignPublisher(LocalWriter{}, dir)
	if err != nil {
		t.Fatal(err)
	}
	result := &domain.PipelineResult{
		Prompt: "a phoenix rising",
		Images: []domain.GeneratedImage{
			{ID: "c", Kind: domain.KindColor, Label: "color", Data: []byte("color-bytes"), MimeType: "image/png", Seed: 42,
				Trace: []domain.StageTrace{{Stage: "base", Seed: 42}}},
			{ID: "s", Kind: domain.KindStencil, Label: "stencil", Data: []byte("stencil-bytes"), MimeType: "image/png", Seed: 43},
		},
	}

	published, err := p.Publish(context.Background(), "sess-1", result)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if result.Images[0].URL != "" {
		t.Error("入力の結果を書き換えてしまったのだ")
	}

	wantColor := filepath.Join(dir, "sess-1", "images", "color_1.png")
	if published.Images[0].URL != wantColor {
		t.Errorf("URL = %s, want %s", published.Images[0].URL, wantColor)
	}
	data, err := os.ReadFile(published.Images[1].URL)
	if err != nil || string(data) != "stencil-bytes" {
		t.Errorf("ステンシル画像が書き出されていないのだ: %q %v", data, err)
	}

	summary, err := os.ReadFile(filepath.Join(dir, "sess-1", "design_1.md"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"a phoenix rising", "images/color_1.png", "stage base: seed 42"} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("概要に %q が含まれていないのだ:\n%s", want, summary)
		}
	}

	again, err := p.Publish(context.Background(), "sess-1", result)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(again.Images[0].URL) != "color_2.png" {
		t.Errorf("2 回目の連番が進んでいないのだ: %s", again.Images[0].URL)
	}
}

func TestDesignPublisher_ContinuesIndexAfterRestart(t *testing.T) {
	dir := t.TempDir()
	result := &domain.PipelineResult{Images: []domain.GeneratedImage{
		{Kind: domain.KindColor, Data: []byte("c"), MimeType: "image/png"},
		{Kind: domain.KindStencil, Data: []byte("s"), MimeType: "image/png"},
	}}

	first, err := NewDesignPublisher(LocalWriter{}, dir)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if _, err := first.Publish(context.Background(), "sess-1", result); err != nil {
			t.Fatal(err)
		}
	}

	// 新しいプロセス相当の publisher でも既存の成果物を上書きしないのだ
	restarted, err := NewDesignPublisher(LocalWriter{}, dir)
	if err != nil {
		t.Fatal(err)
	}
	published, err := restarted.Publish(context.Background(), "sess-1", result)
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(published.Images[0].URL); got != "color_3.png" {
		t.Errorf("再起動後の連番 = %s, want color_3.png", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "sess-1", "design_3.md")); err != nil {
		t.Errorf("design_3.md が無いのだ: %v", err)
	}

	other, err := restarted.Publish(context.Background(), "sess-2", result)
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(other.Images[1].URL); got != "stencil_1.png" {
		t.Errorf("別セッションの連番 = %s, want stencil_1.png", got)
	}
}

func TestNewDesignPublisher_Required(t *testing.T) {
	if _, err := NewDesignPublisher(nil, "out"); err == nil {
		t.Error("writer なしで作成できてしまったのだ")
	}
	if _, err := NewDesignPublisher(LocalWriter{}, ""); err == nil {
		t.Error("出力先なしで作成できてしまったのだ")
	}
}
