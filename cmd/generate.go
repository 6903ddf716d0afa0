package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-tattoo-kit/pkg/runner"
)

func newGenerateCmd() *cobra.Command {
	var (
		answersFile string
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "回答ファイルからカラー版とステンシル版のデザインを生成するのだ。",
		Long: `YAML の回答ファイルを読み込んで質問票を最後まで進め、デザインを生成するのだ。
リトライできる失敗なら 1 回だけ自動でやり直すのだよ。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			af, err := runner.LoadAnswerFile(answersFile)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			gr, err := a.manager.BuildGenerateRunner()
			if err != nil {
				return err
			}

			slog.Info("デザイン生成パイプラインを起動するのだ！",
				"answers", answersFile,
				"image_model", cfg.Kit.ImageModel,
				"output", cfg.OutputDir)

			_, out, err := gr.Run(ctx, af)
			if err != nil {
				return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("%s (correlation_id=%s)", out.UserMessage, out.CorrelationID)
			}
			slog.Info("すべての生成工程が完了したのだ！", "design_id", out.DesignID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&answersFile, "answers", "a", "", "回答 YAML のパスなのだ。")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "画像の出力先なのだ (既定は OUTPUT_DIR)。")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
