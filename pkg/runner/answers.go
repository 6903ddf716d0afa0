package runner

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// AnswerFile は CLI などから一括投入する回答の YAML 表現です。
// 空のストーリーはスキップとして扱われます。
type AnswerFile struct {
	Stories     []string                           `yaml:"stories"`
	Selections  map[domain.VisualCategory][]string `yaml:"selections"`
	ClosingNote string                             `yaml:"closing_note"`
	References  []ReferenceSpec                    `yaml:"references"`
}

// ReferenceSpec は参照画像の指定です。URL か Path のどちらかを指定します。
type ReferenceSpec struct {
	URL   string `yaml:"url"`
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

// LoadAnswerFile は path の YAML を読み込みます。
func LoadAnswerFile(path string) (*AnswerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("回答ファイルの読み込みに失敗しました: %w", err)
	}
	return ParseAnswerFile(data)
}

// ParseAnswerFile は YAML を AnswerFile に変換し、カテゴリを検証します。
// カテゴリのキーは正規化し、"Style" と "style" のように同じカテゴリを指すキーはまとめます。
func ParseAnswerFile(data []byte) (*AnswerFile, error) {
	var af AnswerFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("回答ファイルのパースに失敗しました: %w", err)
	}
	selections := make(map[domain.VisualCategory][]string, len(af.Selections))
	for _, key := range slices.Sorted(maps.Keys(af.Selections)) {
		c, err := domain.ParseVisualCategory(string(key))
		if err != nil {
			return nil, err
		}
		selections[c] = append(selections[c], af.Selections[key]...)
	}
	af.Selections = selections
	for i, ref := range af.References {
		if ref.URL == "" && ref.Path == "" {
			return nil, fmt.Errorf("references[%d]: url か path は必須です", i)
		}
	}
	return &af, nil
}

// referenceImage は ReferenceSpec を ReferenceImage に変換します。Path はここで読み込みます。
func (r ReferenceSpec) referenceImage() (domain.ReferenceImage, error) {
	ref := domain.ReferenceImage{URL: r.URL, Label: r.Label}
	if r.Path == "" {
		return ref, nil
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return ref, fmt.Errorf("参照画像の読み込みに失敗しました: %w", err)
	}
	ref.Data = data
	ref.MimeType = http.DetectContentType(data)
	return ref, nil
}
