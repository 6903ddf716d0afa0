package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

func newDesignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "designs",
		Short: "保存済みのデザインを扱うのだ。",
	}
	cmd.AddCommand(newDesignsListCmd())
	return cmd
}

func newDesignsListCmd() *cobra.Command {
	var (
		sessionID string
		since     time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "保存済みのデザインを新しい順に一覧表示するのだ。",
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

			filter := domain.DesignFilter{SessionID: sessionID, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			records, err := st.ListDesigns(ctx, filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSESSION\tCREATED\tCOLOR\tSTENCIL")
			for _, rec := range records {
				color, stencil := imageURL(rec, domain.KindColor), imageURL(rec, domain.KindStencil)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.SessionID, rec.CreatedAt.Format(time.RFC3339), color, stencil)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "セッション ID で絞り込むのだ。")
	cmd.Flags().DurationVar(&since, "since", 0, "指定期間内に作られたものだけにするのだ (例: 24h)。")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "表示件数の上限なのだ。")
	return cmd
}

func imageURL(rec domain.DesignRecord, kind domain.ImageKind) string {
	for _, img := range rec.Images {
		if img.Kind == kind {
			return img.URL
		}
	}
	return "-"
}
