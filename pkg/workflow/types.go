package workflow

import (
	"context"
	"log/slog"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/pkg/config"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/imaging"
	"github.com/shouni/go-tattoo-kit/pkg/llm"
	"github.com/shouni/go-tattoo-kit/pkg/publisher"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

// Repository は完成デザインと利用記録の保存先です。
type Repository interface {
	SaveDesign(ctx context.Context, rec domain.DesignRecord) (string, error)
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
}

// ManagerArgs は Manager の構築に必要な依存です。
type ManagerArgs struct {
	Config config.Config
	// HTTPClient は利用者が渡した参照画像 URL の取得に使います。SSRF 対策付きのクライアントを渡してください。
	HTTPClient httpkit.HTTPClient
	// ServiceClient は設定済みの画像 API と言語モデルへの呼び出しに使います。nil なら HTTPClient を使います。
	ServiceClient httpkit.Doer

	// Bank が nil のときは組み込みの質問バンクを使います。
	Bank *questionnaire.Bank
	// Repository が nil のときは保存と利用記録を行いません。
	Repository Repository
	// Writer と OutputDir が揃っているときだけ成果物を書き出します。
	Writer    publisher.OutputWriter
	OutputDir string

	// 以下はテストや独自バックエンド向けの差し替えです。nil なら Config から構築します。
	ImageService imaging.Service
	LLM          llm.Provider
	Logger       *slog.Logger
}
