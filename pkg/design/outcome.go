package design

import (
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
)

// Status は生成の進行状態です。呼び出し側が見られるのは pending と完了/失敗だけです。
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTerminal  Status = "terminal"
)

// Outcome は generate / retry の結果です。成功なら images、失敗なら分類とユーザー向けメッセージを持ちます。
type Outcome struct {
	Success       bool                    `json:"success"`
	Images        []domain.GeneratedImage `json:"images,omitempty"`
	DesignID      string                  `json:"design_id,omitempty"`
	ErrorKind     failure.Kind            `json:"error_kind,omitempty"`
	UserMessage   string                  `json:"user_message,omitempty"`
	Retryable     bool                    `json:"retryable"`
	CorrelationID string                  `json:"correlation_id,omitempty"`
}

func successOutcome(result *domain.PipelineResult, designID string) Outcome {
	return Outcome{Success: true, Images: result.Images, DesignID: designID}
}

func failureOutcome(rec failure.Record, retryable bool) Outcome {
	return Outcome{
		Success:       false,
		ErrorKind:     rec.Kind,
		UserMessage:   rec.UserMessage,
		Retryable:     retryable,
		CorrelationID: rec.CorrelationID,
	}
}
