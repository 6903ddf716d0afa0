package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// UsageRow は利用記録の Parquet 行です。
type UsageRow struct {
	ID         string    `parquet:"id"`
	SessionID  string    `parquet:"session_id"`
	Operation  string    `parquet:"operation"`
	Provider   string    `parquet:"provider"`
	Model      string    `parquet:"model"`
	Kind       string    `parquet:"kind"`
	Credits    float64   `parquet:"credits"`
	Success    bool      `parquet:"success"`
	ErrorKind  string    `parquet:"error_kind"`
	DurationMS int64     `parquet:"duration_ms"`
	CreatedAt  time.Time `parquet:"created_at,timestamp(millisecond)"`
}

func toRow(rec domain.UsageRecord) UsageRow {
	return UsageRow{
		ID:         rec.ID,
		SessionID:  rec.SessionID,
		Operation:  rec.Operation,
		Provider:   rec.Provider,
		Model:      rec.Model,
		Kind:       rec.Kind,
		Credits:    rec.Credits,
		Success:    rec.Success,
		ErrorKind:  rec.ErrorKind,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}

// ExportUsageParquet は条件に合う利用記録を Parquet 形式で w に書き出し、件数を返します。
func (s *Store) ExportUsageParquet(ctx context.Context, w io.Writer, f domain.UsageFilter) (int, error) {
	records, err := s.ListUsage(ctx, f)
	if err != nil {
		return 0, err
	}
	rows := make([]UsageRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec))
	}

	writer := parquet.NewGenericWriter[UsageRow](w)
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("parquet の書き込みに失敗しました: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("parquet のクローズに失敗しました: %w", err)
	}
	return len(rows), nil
}
