package imaging

import (
	"fmt"
	"net/http"
)

// FailureClass は外部呼び出しの失敗をレスポンスから 3 つに分類したものです。
type FailureClass string

const (
	ClassModeration  FailureClass = "moderation"
	ClassRateLimited FailureClass = "rate_limited"
	ClassOther       FailureClass = "other"
)

// ClassifyStatus は HTTP ステータスから失敗分類を決めます。
func ClassifyStatus(status int) FailureClass {
	switch status {
	case http.StatusForbidden:
		return ClassModeration
	case http.StatusTooManyRequests:
		return ClassRateLimited
	default:
		return ClassOther
	}
}

// StatusError は画像合成サービスが失敗を返したことを示します。
type StatusError struct {
	Operation  Operation
	StatusCode int
	Class      FailureClass
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image service %s failed (%s): status %d: %s", e.Operation, e.Class, e.StatusCode, e.Body)
}

// Terminal はモデレーション拒否のとき true です。同じプロンプトでの再試行は行いません。
func (e *StatusError) Terminal() bool {
	return e.Class == ClassModeration
}
