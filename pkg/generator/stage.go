package generator

import (
	"context"
	"errors"
	"net/url"

	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/imaging"
)

// StageName はパイプラインのステージ名です。
type StageName string

const (
	StageBase      StageName = "base"
	StageStyle     StageName = "style"
	StageStructure StageName = "structure"
	StageRefine    StageName = "refine"
)

// StageInput は 1 ステージへの入力です。
type StageInput struct {
	Prompt         string
	NegativePrompt string
	Model          string
	Image          []byte
	Control        []byte
	Seed           *int64
}

// StageOutput は 1 ステージの出力です。次のステージの入力画像になります。
type StageOutput struct {
	Image        []byte
	MimeType     string
	Seed         int64
	FinishReason string
}

// Stage は画像合成サービスへの 1 回の呼び出しを表す名前付きの工程です。
// 失敗したときの分類 (Kind) を宣言として持ちます。
type Stage struct {
	Name      StageName
	Operation imaging.Operation
	Kind      failure.Kind
	Strength  *float64
	// UseReference が true なら、参照画像を構図マップとして入力画像と別に送ります。
	UseReference bool
}

// NeedsImage は前段の画像を入力に取るステージかを返します。
func (s Stage) NeedsImage() bool {
	return s.Operation != imaging.OpGenerate
}

// Execute は svc に対してこのステージを 1 回実行し、分類済みのエラーを返します。
func (s Stage) Execute(ctx context.Context, svc imaging.Service, in StageInput) (StageOutput, error) {
	if s.NeedsImage() && len(in.Image) == 0 {
		return StageOutput{}, failure.Wrap(s.Kind, string(s.Name), errors.New("入力画像がありません"))
	}

	resp, err := svc.Generate(ctx, imaging.Request{
		Operation:      s.Operation,
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		Image:          in.Image,
		ControlImage:   in.Control,
		Strength:       s.Strength,
		Seed:           in.Seed,
		Model:          in.Model,
	})
	if err != nil {
		return StageOutput{}, s.classify(err)
	}
	return StageOutput{
		Image:        resp.Data,
		MimeType:     resp.MimeType,
		Seed:         resp.Seed,
		FinishReason: resp.FinishReason,
	}, nil
}

// classify はステージの宣言種別を基本に、通信由来の失敗を EXTERNAL_CALL に寄せます。
// スタイルステージの失敗は常に STYLE_STAGE です。
func (s Stage) classify(err error) error {
	kind := s.Kind
	if kind != failure.KindStyleStage && isExternal(err) {
		kind = failure.KindExternalCall
	}
	var se *imaging.StatusError
	if errors.As(err, &se) && se.Terminal() {
		return failure.WrapTerminal(kind, string(s.Name), err)
	}
	return failure.Wrap(kind, string(s.Name), err)
}

func isExternal(err error) bool {
	var se *imaging.StatusError
	var ue *url.Error
	return errors.As(err, &se) || errors.As(err, &ue)
}
