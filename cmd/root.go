package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootFlags は全コマンド共通のフラグなのだ。
type rootFlags struct {
	logLevel      string
	logFormat     string
	questionsFile string
}

var flags rootFlags

// NewRootCmd はルートコマンドを組み立てるのだ。
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tattoo",
		Short: "質問に答えるだけでタトゥーデザインを生成するのだ。",
		Long: `ストーリーの質問とビジュアル選択からプロンプトを合成し、
カラー版とステンシル版のタトゥーデザインを同時に生成するのだ。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env があれば読み込むのだ（無くてもエラーにしない）
			_ = godotenv.Load()
			return setupLogger(flags.logLevel, flags.logFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "ログレベル (debug|info|warn|error) なのだ。")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "ログ形式 (text|json) なのだ。")
	cmd.PersistentFlags().StringVar(&flags.questionsFile, "questions", "", "質問バンクの YAML パスなのだ。省略時は組み込みのものを使うのだ。")

	cmd.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newFollowUpCmd(),
		newDesignsCmd(),
		newUsageCmd(),
	)
	return cmd
}

// setupLogger は slog のデフォルトロガーを設定するのだ。
func setupLogger(level, format string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("不正なログレベルなのだ: %q", level)
	}
	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("不正なログ形式なのだ: %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
