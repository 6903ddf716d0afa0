package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/shouni/go-tattoo-kit/pkg/llm"
	"github.com/shouni/go-tattoo-kit/pkg/prompts"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
	"github.com/shouni/go-tattoo-kit/pkg/runner"
)

func newFollowUpCmd() *cobra.Command {
	var (
		answersFile string
		step        int
	)

	cmd := &cobra.Command{
		Use:   "followup",
		Short: "回答に対する追加質問を表示するのだ。",
		Long: `回答ファイルのストーリーを読み込み、指定ステップの追加質問を表示するのだ。
言語モデルが使えないときは質問バンクの質問になるのだよ。`,
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

			bank, err := questionnaire.DefaultBank()
			if cfg.QuestionsFile != "" {
				bank, err = questionnaire.LoadBank(cfg.QuestionsFile)
			}
			if err != nil {
				return err
			}
			provider, err := llm.New(ctx, llm.Config{
				Provider:    cfg.Kit.LLMProvider,
				Model:       cfg.Kit.LLMModel,
				APIKey:      cfg.Kit.LLMAPIKey,
				BaseURL:     cfg.Kit.LLMBaseURL,
				Temperature: cfg.Kit.LLMTemperature,
				HTTPClient:  newServiceClient(cfg),
			})
			if err != nil {
				return err
			}
			synth, err := prompts.NewSynthesizer(provider, bank)
			if err != nil {
				return err
			}

			answers := bank.NewAnswers()
			for i, story := range af.Stories {
				if err := answers.SetStory(i, story); err != nil {
					return err
				}
			}
			f, err := synth.FollowUp(ctx, answers, step)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(f)
		},
	}

	cmd.Flags().StringVarP(&answersFile, "answers", "a", "", "回答 YAML のパスなのだ。")
	cmd.Flags().IntVarP(&step, "step", "s", 0, "対象のストーリーステップ (0 始まり) なのだ。")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
