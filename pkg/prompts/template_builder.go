package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

// promptTemplates は言語モデルに渡す埋め込みテンプレートを、用途ごとに解析済みで保持します。
// 用途ごとにメソッドを分け、渡すデータの型をコンパイル時に固定します。
type promptTemplates struct {
	enhance  *template.Template
	followUp *template.Template
}

func parsePromptTemplates() (*promptTemplates, error) {
	enhance, err := parseEmbedded("enhance", EnhancePrompt)
	if err != nil {
		return nil, err
	}
	followUp, err := parseEmbedded("followup", FollowUpPrompt)
	if err != nil {
		return nil, err
	}
	return &promptTemplates{enhance: enhance, followUp: followUp}, nil
}

// parseEmbedded は go:embed で読み込んだテンプレートを解析します。
// 存在しないフィールドの参照は実行時にエラーにします。
func parseEmbedded(name, content string) (*template.Template, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("テンプレート %s が空です", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("テンプレート %s の解析に失敗しました: %w", name, err)
	}
	return tmpl, nil
}

// Enhance は最終プロンプト強化用の指示文を返します。
func (p *promptTemplates) Enhance(data EnhanceData) (string, error) {
	return render(p.enhance, data)
}

// FollowUp は追加質問生成用の指示文を返します。
func (p *promptTemplates) FollowUp(data FollowUpData) (string, error) {
	return render(p.followUp, data)
}

func render[T EnhanceData | FollowUpData](tmpl *template.Template, data T) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("テンプレート %s の実行に失敗しました: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
