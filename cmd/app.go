package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/internal/config"
	"github.com/shouni/go-tattoo-kit/pkg/publisher"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
	"github.com/shouni/go-tattoo-kit/pkg/store"
	"github.com/shouni/go-tattoo-kit/pkg/workflow"
)

// app はコマンド間で共有する依存なのだ。
type app struct {
	cfg        *config.Config
	store      *store.Store
	manager    *workflow.Manager
	httpClient *httpkit.Client
}

// newServiceClient は環境変数で指定したサービス (画像 API、言語モデル) 向けのクライアントなのだ。
// 接続先は運用者が決めるので、ローカルの Ollama などに届くようネットワーク検証を外すのだ。
func newServiceClient(cfg *config.Config) *httpkit.Client {
	return httpkit.New(cfg.HTTPTimeout, httpkit.WithSkipNetworkValidation(true))
}

// loadConfig は環境変数とフラグから設定を読み込むのだ。
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flags.questionsFile != "" {
		cfg.QuestionsFile = flags.questionsFile
	}
	return cfg, nil
}

// openStore は設定されたデータベースを開くのだ。
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗したのだ: %w", err)
	}
	return st, nil
}

// newApp は設定、ストア、ワークフローを組み立てるのだ。
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Kit.ImageAPIKey == "" {
		return nil, errors.New("環境変数 IMAGE_API_KEY が設定されていません。画像生成には必須なのだ")
	}

	var bank *questionnaire.Bank
	if cfg.QuestionsFile != "" {
		b, err := questionnaire.LoadBank(cfg.QuestionsFile)
		if err != nil {
			return nil, err
		}
		bank = b
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 参照画像 URL は利用者の入力なので SSRF 対策付きのクライアントで取得するのだ
	httpClient := httpkit.New(cfg.HTTPTimeout)
	manager, err := workflow.New(ctx, workflow.ManagerArgs{
		Config:        cfg.Kit,
		HTTPClient:    httpClient,
		ServiceClient: newServiceClient(cfg),
		Bank:          bank,
		Repository:    st,
		Writer:        publisher.LocalWriter{},
		OutputDir:     cfg.OutputDir,
		Logger:        slog.Default(),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("ワークフローの初期化に失敗したのだ: %w", err)
	}
	return &app{cfg: cfg, store: st, manager: manager, httpClient: httpClient}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("データベースのクローズに失敗したのだ", "error", err)
	}
}
