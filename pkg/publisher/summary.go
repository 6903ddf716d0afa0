package publisher

import (
	"fmt"
	"strings"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// buildSummary はデザインの概要 Markdown を組み立てます。
func buildSummary(result *domain.PipelineResult, imagePaths []string) string {
	var sb strings.Builder
	sb.WriteString("# Tattoo Design\n\n")
	if result.Prompt != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", result.Prompt))
	}

	for i, img := range result.Images {
		label := img.Label
		if label == "" {
			label = string(img.Kind)
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", label))
		if i < len(imagePaths) {
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", label, imagePaths[i]))
		}
		sb.WriteString(fmt.Sprintf("- seed: %d\n", img.Seed))
		if img.FinishReason != "" {
			sb.WriteString(fmt.Sprintf("- finish: %s\n", img.FinishReason))
		}
		for _, tr := range img.Trace {
			sb.WriteString(fmt.Sprintf("- stage %s: seed %d\n", tr.Stage, tr.Seed))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
