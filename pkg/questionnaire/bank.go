package questionnaire

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shouni/go-tattoo-kit/pkg/domain"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultBankYAML []byte

// DefaultFollowUp は質問バンクに代替質問が無い場合に使う汎用の質問です。
const DefaultFollowUp = "Can you tell us a little more about that?"

// Question はストーリーカード 1 枚分の質問です。
type Question struct {
	ID        string   `json:"id" yaml:"id"`
	Prompt    string   `json:"prompt" yaml:"prompt"`
	FollowUps []string `json:"follow_ups,omitempty" yaml:"follow_ups"`
}

// Bank はストーリー質問とビジュアル選択肢のカタログです。
type Bank struct {
	Stories []Question                                   `json:"stories" yaml:"stories"`
	Visual  map[domain.VisualCategory][]domain.Selection `json:"visual" yaml:"visual"`
}

// DefaultBank は埋め込みの既定バンクを返します。
func DefaultBank() (*Bank, error) {
	return ParseBank(defaultBankYAML)
}

// LoadBank は YAML ファイルから質問バンクを読み込みます。
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("質問バンクの読み込みに失敗しました (path: %s): %w", path, err)
	}
	return ParseBank(data)
}

// ParseBank は YAML バイト列をパースして検証します。
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("質問バンクのデコードに失敗しました: %w", err)
	}
	for i, q := range b.Stories {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("ストーリー質問 %d の prompt が空です", i)
		}
	}
	for c := range b.Visual {
		if _, err := domain.ParseVisualCategory(string(c)); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// StepCount はストーリーステップ数です。
func (b *Bank) StepCount() int {
	return len(b.Stories)
}

// Question は i 番目の質問を返します。
func (b *Bank) Question(i int) (Question, bool) {
	if i < 0 || i >= len(b.Stories) {
		return Question{}, false
	}
	return b.Stories[i], true
}

// FallbackFollowUp は静的な代替質問を返します。n で候補を巡回します。
func (b *Bank) FallbackFollowUp(step, n int) string {
	q, ok := b.Question(step)
	if !ok || len(q.FollowUps) == 0 {
		return DefaultFollowUp
	}
	if n < 0 {
		n = -n
	}
	return q.FollowUps[n%len(q.FollowUps)]
}

// NewAnswers はこのバンクのステップ数で空の回答を作ります。
func (b *Bank) NewAnswers() *domain.SessionAnswers {
	return domain.NewSessionAnswers(b.StepCount())
}
