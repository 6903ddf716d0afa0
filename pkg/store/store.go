// Package store は完成デザインと利用記録を SQLite に保存します。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

// ErrNotFound は指定 ID のデザインが無いことを示します。
var ErrNotFound = errors.New("デザインが見つかりません")

// Store は SQLite バックエンドのストアです。
type Store struct {
	db *sql.DB
}

// Open は dsn のデータベースを開き、テーブルを作成します。":memory:" も使えます。
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("データベースのパスは必須です")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベースを開けませんでした: %w", err)
	}
	// SQLite は単一ライターなので接続を 1 本に絞ります。:memory: も接続ごとに別 DB になります。
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースに接続できませんでした: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("テーブルの作成に失敗しました: %w", err)
	}
	return s, nil
}

// Close はデータベースを閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS designs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			answers TEXT NOT NULL,
			images TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_designs_session ON designs (session_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS usage_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			credits REAL NOT NULL,
			success INTEGER NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_records (session_id, created_at);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// SaveDesign は完成デザインを保存し、ID を返します。ID が空なら採番します。
func (s *Store) SaveDesign(ctx context.Context, rec domain.DesignRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return "", fmt.Errorf("回答のエンコードに失敗しました: %w", err)
	}
	images, err := json.Marshal(rec.Images)
	if err != nil {
		return "", fmt.Errorf("画像メタデータのエンコードに失敗しました: %w", err)
	}

	const query = `
	INSERT INTO designs (id, session_id, prompt, answers, images, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.SessionID, rec.Prompt, string(answers), string(images), rec.CreatedAt.UnixMilli()); err != nil {
		return "", fmt.Errorf("デザインの保存に失敗しました: %w", err)
	}
	return rec.ID, nil
}

// GetDesign は ID のデザインを返します。
func (s *Store) GetDesign(ctx context.Context, id string) (*domain.DesignRecord, error) {
	const query = `
	SELECT id, session_id, prompt, answers, images, created_at
	FROM designs
	WHERE id = ?
	`
	rec, err := scanDesign(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListDesigns は新しい順にデザインを返します。
func (s *Store) ListDesigns(ctx context.Context, f domain.DesignFilter) ([]domain.DesignRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	query := "SELECT id, session_id, prompt, answers, images, created_at FROM designs" +
		whereClause(where) + " ORDER BY created_at DESC" + limitClause(f.Limit, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("デザインの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []domain.DesignRecord
	for rows.Next() {
		rec, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDesign(row scanner) (*domain.DesignRecord, error) {
	var (
		rec             domain.DesignRecord
		answers, images string
		createdAt       int64
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.Prompt, &answers, &images, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return nil, fmt.Errorf("回答のデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
		return nil, fmt.Errorf("画像メタデータのデコードに失敗しました: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// RecordUsage は利用記録を 1 件保存します。
func (s *Store) RecordUsage(ctx context.Context, rec domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	const query = `
	INSERT INTO usage_records (id, session_id, operation, provider, model, kind, credits, success, error_kind, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.Operation, rec.Provider, rec.Model, rec.Kind,
		rec.Credits, rec.Success, rec.ErrorKind, rec.Duration.Milliseconds(), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("利用記録の保存に失敗しました: %w", err)
	}
	return nil
}

// ListUsage は古い順に利用記録を返します。
func (s *Store) ListUsage(ctx context.Context, f domain.UsageFilter) ([]domain.UsageRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	query := "SELECT id, session_id, operation, provider, model, kind, credits, success, error_kind, duration_ms, created_at FROM usage_records" +
		whereClause(where) + " ORDER BY created_at ASC, id ASC" + limitClause(f.Limit, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("利用記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var (
			rec                   domain.UsageRecord
			durationMS, createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Operation, &rec.Provider, &rec.Model, &rec.Kind,
			&rec.Credits, &rec.Success, &rec.ErrorKind, &durationMS, &createdAt); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitClause(limit int, args *[]any) string {
	if limit <= 0 {
		return ""
	}
	*args = append(*args, limit)
	return " LIMIT ?"
}
