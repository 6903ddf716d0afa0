package asset

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shouni/go-utils/urlpath"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

const (
	// DefaultImageDir は生成画像を格納するデフォルトのディレクトリ名です。
	DefaultImageDir = "images"
	// DefaultSummaryName はデザイン概要のデフォルト Markdown ファイル名です。
	DefaultSummaryName = "design.md"
	// DefaultColorFileName はカラー画像のベースファイル名です。
	DefaultColorFileName = "color.png"
	// DefaultStencilFileName はステンシル画像のベースファイル名です。
	DefaultStencilFileName = "stencil.png"
)

var (
	// ColorFileRegex はカラー画像 (color_1.png 等) に一致します
	ColorFileRegex = createIndexedRegex(DefaultColorFileName)
	// StencilFileRegex はステンシル画像 (stencil_1.png 等) に一致します
	StencilFileRegex = createIndexedRegex(DefaultStencilFileName)
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpeg",
	"image/webp": ".webp",
}

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolvePath(baseDir, fileName)
}

// GenerateIndexedPath は、指定されたベースパスの拡張子の前に連番を挿入します。
// 例: "path/to/color.png", 1 -> "path/to/color_1.png"
func GenerateIndexedPath(basePath string, index int) (string, error) {
	return urlpath.GenerateIndexedPath(basePath, index)
}

// ImageFileName は画像種別と MIME タイプからベースファイル名を決めます。
func ImageFileName(kind domain.ImageKind, mimeType string) string {
	base := DefaultColorFileName
	if kind == domain.KindStencil {
		base = DefaultStencilFileName
	}
	ext, ok := extensions[mimeType]
	if !ok {
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// ImageIndex は連番付きの生成画像名 (color_3.png 等) から連番を取り出します。
func ImageIndex(name string) (int, bool) {
	for _, re := range []*regexp.Regexp{ColorFileRegex, StencilFileRegex} {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// NextIndex は既存のファイル名一覧から次に使う連番を返します。生成画像が無ければ 1 です。
func NextIndex(names []string) int {
	last := 0
	for _, name := range names {
		if n, ok := ImageIndex(name); ok && n > last {
			last = n
		}
	}
	return last + 1
}

// createIndexedRegex は、ファイル名に基づきインデックス付きファイル用の正規表現を生成します。
// 拡張子は png/jpeg/webp のいずれにも一致し、連番を 1 番目のグループに取ります。
// 例: "color.png" -> ^color_(\d+)\.(png|jpeg|webp)$
func createIndexedRegex(fileName string) *regexp.Regexp {
	baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	pattern := fmt.Sprintf(`^%s_(\d+)\.(png|jpeg|webp)$`, regexp.QuoteMeta(baseName))
	return regexp.MustCompile(pattern)
}
