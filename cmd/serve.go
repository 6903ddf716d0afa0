package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-tattoo-kit/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "デザインセッションの JSON API サーバーを起動するのだ。",
		Example: `  # デフォルトの :8080 で起動
  tattoo serve

  # ポートを指定して起動
  tattoo serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := handlers.New(a.manager, a.manager.Bank(), a.store, handlers.WithURLValidator(a.httpClient))
			if err != nil {
				return err
			}
			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("タトゥーデザイン API を起動したのだ", "addr", cfg.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				slog.Info("サーバーを停止するのだ...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("サーバーの停止に失敗したのだ", "err", err)
					return err
				}
				slog.Info("サーバーを停止したのだ")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "待ち受けアドレスなのだ (既定は ADDR か :8080)。")
	return cmd
}
