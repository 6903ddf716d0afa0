package domain

import (
	"context"
	"time"
)

// UsageRecord は外部サービス呼び出し 1 回分の利用記録です。
type UsageRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Operation string        `json:"operation"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Kind      string        `json:"kind,omitempty"`
	Credits   float64       `json:"credits"`
	Success   bool          `json:"success"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

type sessionIDKey struct{}

// WithSessionID はセッション ID を context に載せます。利用記録とログに使われます。
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFrom は context からセッション ID を取り出します。
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// DesignRecord は保存される完成デザインです。
type DesignRecord struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Prompt    string           `json:"prompt"`
	Answers   *SessionAnswers  `json:"answers"`
	Images    []GeneratedImage `json:"images"`
	CreatedAt time.Time        `json:"created_at"`
}

// DesignFilter は保存済みデザインの絞り込み条件です。ゼロ値は条件なしです。
type DesignFilter struct {
	SessionID string
	Since     time.Time
	Limit     int
}

// UsageFilter は利用記録の絞り込み条件です。
type UsageFilter struct {
	SessionID string
	Operation string
	Since     time.Time
	Limit     int
}
