package domain

import (
	"errors"
	"fmt"
)

// ImageKind は生成画像の種別タグです。
type ImageKind string

const (
	KindColor   ImageKind = "color"
	KindStencil ImageKind = "stencil"
)

// ErrInvalidResult は結果が color 1 枚 + stencil 1 枚になっていないことを示します。
var ErrInvalidResult = errors.New("生成結果は color と stencil をちょうど 1 枚ずつ含む必要があります")

// StageTrace は 1 ステージの呼び出し結果の記録です。
type StageTrace struct {
	Stage        string `json:"stage"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finish_reason"`
}

// GeneratedImage は生成された 1 枚の画像です。
type GeneratedImage struct {
	ID           string       `json:"id"`
	Kind         ImageKind    `json:"kind"`
	Label        string       `json:"label"`
	Data         []byte       `json:"-"`
	MimeType     string       `json:"mime_type"`
	URL          string       `json:"url,omitempty"`
	Seed         int64        `json:"seed"`
	FinishReason string       `json:"finish_reason"`
	Trace        []StageTrace `json:"trace,omitempty"`
}

// PipelineResult は成功した 1 試行の成果物です。
type PipelineResult struct {
	Images []GeneratedImage `json:"images"`
	Prompt string           `json:"prompt,omitempty"`
}

// Validate は color と stencil がちょうど 1 枚ずつであることを検査します。
func (r *PipelineResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: 結果が nil です", ErrInvalidResult)
	}
	counts := map[ImageKind]int{}
	for _, img := range r.Images {
		counts[img.Kind]++
	}
	if len(r.Images) != 2 || counts[KindColor] != 1 || counts[KindStencil] != 1 {
		return fmt.Errorf("%w: %d 枚 (color=%d, stencil=%d)", ErrInvalidResult, len(r.Images), counts[KindColor], counts[KindStencil])
	}
	return nil
}

// Image は指定種別の画像を返します。
func (r *PipelineResult) Image(kind ImageKind) (GeneratedImage, bool) {
	for _, img := range r.Images {
		if img.Kind == kind {
			return img, true
		}
	}
	return GeneratedImage{}, false
}
