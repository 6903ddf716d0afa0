package prompts

import (
	_ "embed"
)

// TagLine はカテゴリごとの選択タグ 1 行分です。
type TagLine struct {
	Category string
	Values   string
}

// EnhanceData はプロンプト強化テンプレートに渡すデータ構造です。
type EnhanceData struct {
	Stories     []string
	Tags        []TagLine
	ClosingNote string
	Composed    string
}

// FollowUpData は追加質問テンプレートに渡すデータ構造です。
type FollowUpData struct {
	Question string
	Answer   string
	Previous []string
}

var (
	//go:embed enhance.md
	EnhancePrompt string
	//go:embed followup.md
	FollowUpPrompt string
)
