package generator

import (
	"time"

	"github.com/shouni/go-tattoo-kit/pkg/config"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/imaging"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"
)

// RunSpec は 1 本の生成実行 (color または stencil) の偏りを定義します。
type RunSpec struct {
	Kind     domain.ImageKind
	Label    string
	Bias     string
	Negative string
}

// DefaultRuns はカラー版とステンシル版の 2 本です。
func DefaultRuns() []RunSpec {
	return []RunSpec{
		{Kind: domain.KindColor, Label: "Full color design", Bias: prompts.ColorBias},
		{Kind: domain.KindStencil, Label: "Stencil linework", Bias: prompts.StencilBias, Negative: prompts.StencilNegativePrompt},
	}
}

// Options はオーケストレーターの動作設定です。
type Options struct {
	StyleEnabled      bool
	StyleStrength     float64
	StructureEnabled  bool
	StructureStrength float64
	StructureMode     config.StructureMode

	MaxConcurrentCalls int64
	RateInterval       time.Duration
	RateBurst          int

	StageCredits map[string]float64
	Runs         []RunSpec
}

// OptionsFromConfig は Config から Options を作ります。
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		StyleEnabled:       cfg.StyleEnabled,
		StyleStrength:      cfg.StyleStrength,
		StructureEnabled:   cfg.StructureEnabled,
		StructureStrength:  cfg.StructureStrength,
		StructureMode:      cfg.StructureMode,
		MaxConcurrentCalls: cfg.MaxConcurrentCalls,
		RateInterval:       cfg.RateInterval,
		RateBurst:          cfg.RateBurst,
		StageCredits:       cfg.StageCredits,
		Runs:               DefaultRuns(),
	}
}

// Stages は有効なステージを実行順に返します。base と refine は常に含まれます。
func (o Options) Stages() []Stage {
	stages := []Stage{{Name: StageBase, Operation: imaging.OpGenerate, Kind: failure.KindGeneration}}
	if o.StyleEnabled {
		stages = append(stages, Stage{
			Name:      StageStyle,
			Operation: imaging.OpStyle,
			Kind:      failure.KindStyleStage,
			Strength:  ptr(clamp01(o.StyleStrength)),
		})
	}
	if o.StructureEnabled {
		op := imaging.OpStructure
		if o.StructureMode == config.StructureModeSketch {
			op = imaging.OpSketch
		}
		stages = append(stages, Stage{
			Name:         StageStructure,
			Operation:    op,
			Kind:         failure.KindGeneration,
			Strength:     ptr(clamp01(o.StructureStrength)),
			UseReference: true,
		})
	}
	return append(stages, Stage{Name: StageRefine, Operation: imaging.OpUpscale, Kind: failure.KindGeneration})
}

func ptr[T any](v T) *T { return &v }

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
