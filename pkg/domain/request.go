package domain

import (
	"errors"
	"strings"
)

// PipelineRequest は生成試行 1 回分の不変な入力値です。
// 構築後は変更できず、リトライ時は同じ回答から新しく作り直します。
type PipelineRequest struct {
	prompt         string
	negativePrompt string
	model          string
	seed           *int64
}

// NewPipelineRequest は PipelineRequest を構築します。seed は nil で「未指定」です。
func NewPipelineRequest(prompt, negativePrompt, model string, seed *int64) (PipelineRequest, error) {
	if strings.TrimSpace(prompt) == "" {
		return PipelineRequest{}, errors.New("プロンプトが空です")
	}
	var s *int64
	if seed != nil {
		v := *seed
		s = &v
	}
	return PipelineRequest{
		prompt:         prompt,
		negativePrompt: negativePrompt,
		model:          model,
		seed:           s,
	}, nil
}

func (r PipelineRequest) Prompt() string         { return r.prompt }
func (r PipelineRequest) NegativePrompt() string { return r.negativePrompt }
func (r PipelineRequest) Model() string          { return r.model }

// Seed はシード値のコピーを返します。
func (r PipelineRequest) Seed() (int64, bool) {
	if r.seed == nil {
		return 0, false
	}
	return *r.seed, true
}
