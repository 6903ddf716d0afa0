package failure

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Record は分類結果です。作成後は変更しません。
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Kind          Kind      `json:"kind"`
	UserMessage   string    `json:"user_message"`
	Technical     string    `json:"-"`
	Stack         string    `json:"-"`
	CorrelationID string    `json:"correlation_id"`
	Retryable     bool      `json:"retryable"`
	Terminal      bool      `json:"terminal"`
}

// Classifier はエラーを分類し、技術ログを必ず出力します。
type Classifier struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewClassifier は logger に出力する Classifier を返します。nil なら slog.Default() です。
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger, now: time.Now}
}

// Classify は err を 1 つの種別に分類し、ログを出して Record を返します。
// エラーを握りつぶすことはなく、リトライ判断は呼び出し側が Record を見て行います。
// attrs は slog 形式のキーと値の組で、ログの文脈として付与されます。
func (c *Classifier) Classify(ctx context.Context, err error, attrs ...any) Record {
	if err == nil {
		return Record{}
	}
	kind := KindOf(err)
	terminal := IsTerminal(err)
	rec := Record{
		Timestamp:     c.now(),
		Kind:          kind,
		UserMessage:   kind.UserMessage(),
		Technical:     err.Error(),
		Stack:         stackOf(err),
		CorrelationID: uuid.NewString(),
		Retryable:     kind.Retryable() && !terminal,
		Terminal:      terminal,
	}

	args := append([]any{
		"kind", rec.Kind,
		"correlation_id", rec.CorrelationID,
		"retryable", rec.Retryable,
		"terminal", rec.Terminal,
		"error", rec.Technical,
		"stack", rec.Stack,
	}, attrs...)
	c.logger.ErrorContext(ctx, "処理に失敗しました", args...)

	return rec
}
