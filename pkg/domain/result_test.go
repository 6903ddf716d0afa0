package domain

import (
	"errors"
	"testing"
)

func TestPipelineResult_Validate(t *testing.T) {
	color := GeneratedImage{ID: "c", Kind: KindColor}
	stencil := GeneratedImage{ID: "s", Kind: KindStencil}

	tests := []struct {
		name    string
		images  []GeneratedImage
		wantErr bool
	}{
		{"color と stencil が 1 枚ずつ", []GeneratedImage{color, stencil}, false},
		{"順序が逆でも有効", []GeneratedImage{stencil, color}, false},
		{"0 枚", nil, true},
		{"1 枚", []GeneratedImage{color}, true},
		{"3 枚", []GeneratedImage{color, stencil, color}, true},
		{"color が 2 枚", []GeneratedImage{color, color}, true},
		{"stencil が 2 枚", []GeneratedImage{stencil, stencil}, true},
		{"未知の種別", []GeneratedImage{color, {Kind: "sketch"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PipelineResult{Images: tt.images}
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidResult) {
				t.Errorf("ErrInvalidResult でラップされていないのだ: %v", err)
			}
		})
	}

	var nilResult *PipelineResult
	if err := nilResult.Validate(); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("nil 結果を拒否すべきなのだ: %v", err)
	}
}

func TestPipelineResult_Image(t *testing.T) {
	r := &PipelineResult{Images: []GeneratedImage{{ID: "c", Kind: KindColor}, {ID: "s", Kind: KindStencil}}}
	if img, ok := r.Image(KindStencil); !ok || img.ID != "s" {
		t.Errorf("Image(stencil) = %+v, %v", img, ok)
	}
}

func TestNewPipelineRequest(t *testing.T) {
	seed := int64(42)
	req, err := NewPipelineRequest("a phoenix", "blurry", "sd3", &seed)
	if err != nil {
		t.Fatalf("NewPipelineRequest failed: %v", err)
	}
	seed = 7
	if got, ok := req.Seed(); !ok || got != 42 {
		t.Errorf("シードが外部から書き換わったのだ: %d, %v", got, ok)
	}
	if req.Prompt() != "a phoenix" || req.NegativePrompt() != "blurry" || req.Model() != "sd3" {
		t.Errorf("unexpected request: %+v", req)
	}

	noSeed, err := NewPipelineRequest("x", "", "", nil)
	if err != nil {
		t.Fatalf("NewPipelineRequest failed: %v", err)
	}
	if _, ok := noSeed.Seed(); ok {
		t.Error("シード未指定なのに値があるのだ")
	}

	if _, err := NewPipelineRequest("  ", "", "", nil); err == nil {
		t.Error("空プロンプトを受け付けてしまったのだ")
	}
}
