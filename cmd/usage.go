package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

func newUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "外部呼び出しの利用記録を扱うのだ。",
	}
	cmd.AddCommand(newUsageExportCmd())
	return cmd
}

func newUsageExportCmd() *cobra.Command {
	var (
		out       string
		sessionID string
		operation string
		since     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "利用記録を Parquet ファイルに書き出すのだ。",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("出力ファイルを作成できないのだ: %w", err)
			}
			defer f.Close()

			filter := domain.UsageFilter{SessionID: sessionID, Operation: operation}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			n, err := st.ExportUsageParquet(ctx, f, filter)
			if err != nil {
				return err
			}
			slog.Info("利用記録を書き出したのだ", "rows", n, "out", out)
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "usage.parquet", "出力先の Parquet パスなのだ。")
	cmd.Flags().StringVar(&sessionID, "session", "", "セッション ID で絞り込むのだ。")
	cmd.Flags().StringVar(&operation, "operation", "", "操作名 (prompt|base|style|structure|refine) で絞り込むのだ。")
	cmd.Flags().DurationVar(&since, "since", 0, "指定期間内の記録だけにするのだ (例: 168h)。")
	return cmd
}
