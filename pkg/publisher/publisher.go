// Package publisher は完成デザインの画像と概要を出力先に書き出します。
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/shouni/go-tattoo-kit/pkg/asset"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// DesignPublisher は成果物の永続化を担います。
type DesignPublisher struct {
	writer    OutputWriter
	outputDir string

	mu       sync.Mutex
	counters map[string]int
}

// NewDesignPublisher は writer と出力先ディレクトリから DesignPublisher を返します。
func NewDesignPublisher(writer OutputWriter, outputDir string) (*DesignPublisher, error) {
	if writer == nil {
		return nil, errors.New("OutputWriter は必須です")
	}
	if outputDir == "" {
		return nil, errors.New("出力ディレクトリは必須です")
	}
	return &DesignPublisher{writer: writer, outputDir: outputDir, counters: make(map[string]int)}, nil
}

// Publish は画像と design.md を <outputDir>/<sessionID>/ に保存し、URL を設定したコピーを返します。
// 同じセッションで再度呼ばれた場合は連番を進め、前回の成果物を上書きしません。
// writer が OutputLister なら、プロセスを再起動しても出力先の既存画像の次の連番から書きます。
func (p *DesignPublisher) Publish(ctx context.Context, sessionID string, result *domain.PipelineResult) (*domain.PipelineResult, error) {
	if result == nil {
		return nil, errors.New("公開する結果がありません")
	}
	if sessionID == "" {
		sessionID = "anonymous"
	}
	sessionDir, err := asset.ResolveOutputPath(p.outputDir, sessionID)
	if err != nil {
		return nil, err
	}
	imgDir, err := asset.ResolveOutputPath(sessionDir, asset.DefaultImageDir)
	if err != nil {
		return nil, err
	}
	index, err := p.next(ctx, sessionID, imgDir)
	if err != nil {
		return nil, err
	}

	published := *result
	published.Images = make([]domain.GeneratedImage, len(result.Images))
	relative := make([]string, len(result.Images))
	for i, img := range result.Images {
		base, err := asset.ResolveOutputPath(imgDir, asset.ImageFileName(img.Kind, img.MimeType))
		if err != nil {
			return nil, fmt.Errorf("出力パスの解決に失敗しました: %w", err)
		}
		fullPath, err := asset.GenerateIndexedPath(base, index)
		if err != nil {
			return nil, fmt.Errorf("出力パスの解決に失敗しました: %w", err)
		}
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		if err := p.writer.Write(ctx, fullPath, bytes.NewReader(img.Data), mimeType); err != nil {
			return nil, fmt.Errorf("画像の書き込みに失敗しました %s: %w", fullPath, err)
		}
		img.URL = fullPath
		published.Images[i] = img
		relative[i] = path.Join(asset.DefaultImageDir, path.Base(strings.ReplaceAll(fullPath, "\\", "/")))
	}

	summaryBase, err := asset.ResolveOutputPath(sessionDir, asset.DefaultSummaryName)
	if err != nil {
		return nil, err
	}
	summaryPath, err := asset.GenerateIndexedPath(summaryBase, index)
	if err != nil {
		return nil, err
	}
	content := buildSummary(&published, relative)
	if err := p.writer.Write(ctx, summaryPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "デザインを書き出しました", "session_id", sessionID, "summary", summaryPath, "images", len(published.Images))
	return &published, nil
}

// next はセッションの次の連番を予約します。
func (p *DesignPublisher) next(ctx context.Context, sessionID, imgDir string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	index := p.counters[sessionID] + 1
	if lister, ok := p.writer.(OutputLister); ok {
		names, err := lister.List(ctx, imgDir)
		if err != nil {
			return 0, fmt.Errorf("既存の成果物の確認に失敗しました: %w", err)
		}
		index = max(index, asset.NextIndex(names))
	}
	p.counters[sessionID] = index
	return index, nil
}
