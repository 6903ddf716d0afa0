package generator

import "github.com/shouni/go-tattoo-kit/pkg/failure"

// MaxAttempts は 1 セッションで許される生成試行の上限です (初回 + リトライ 1 回)。
const MaxAttempts = 2

// RetryPolicy は有界リトライの判断です。
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy は MaxAttempts 回までの方針を返します。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: MaxAttempts}
}

// CanRetry は attempts 回試行して rec で失敗した後に、もう 1 回試せるかを返します。
func (p RetryPolicy) CanRetry(attempts int, rec failure.Record) bool {
	return rec.Retryable && attempts < p.MaxAttempts
}
