package prompts

import (
	"strings"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

const (
	// ColorBias はカラー版の生成に付け加えるタグです。
	ColorBias = "full color tattoo design, rich saturated ink, smooth shading, clean white background, print ready"
	// StencilBias はステンシル版の生成に付け加えるタグです。
	StencilBias = "tattoo stencil, black linework only, clean single-weight outlines, no shading, no color, white background, thermal transfer ready"

	// DefaultNegativePrompt は両方の実行に共通するネガティブプロンプトです。
	DefaultNegativePrompt = "text, watermark, signature, blurry, low quality, distorted anatomy, photo of skin, body, mockup, frame"
	// StencilNegativePrompt はステンシル版で追加するネガティブプロンプトです。
	StencilNegativePrompt = "color, gradient, shading, grey wash, texture fill"
)

// Compose は回答をローカルで 1 段落にまとめる純粋関数です。
// 空回答とスキップ印は無視し、選択タグとクロージングノートを続けます。
func Compose(a *domain.SessionAnswers) string {
	var parts []string

	if stories := storyFragments(a); len(stories) > 0 {
		parts = append(parts, "A tattoo design inspired by "+strings.Join(stories, "; ")+".")
	}
	for _, line := range tagLines(a) {
		parts = append(parts, capitalize(line.Category)+": "+line.Values+".")
	}
	if note := strings.TrimSpace(a.ClosingNote); note != "" {
		parts = append(parts, "Note: "+note+".")
	}

	return strings.Join(parts, " ")
}

// JoinPrompt はプロンプトにタグを連結します。空の要素は飛ばします。
func JoinPrompt(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func storyFragments(a *domain.SessionAnswers) []string {
	var out []string
	for _, s := range a.Stories {
		s = strings.TrimSpace(s)
		if s == "" || s == domain.SkippedAnswer {
			continue
		}
		out = append(out, strings.TrimRight(s, ".!?"))
	}
	return out
}

func tagLines(a *domain.SessionAnswers) []TagLine {
	var out []TagLine
	for _, c := range domain.VisualCategories {
		tags := a.Tags(c)
		if len(tags) == 0 {
			continue
		}
		out = append(out, TagLine{Category: string(c), Values: strings.Join(tags, ", ")})
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
