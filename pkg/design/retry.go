package design

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/go-tattoo-kit/pkg/generator"
)

// GenerateWithRetry は Generate を行い、リトライ可能な失敗なら b の間隔を空けて Retry を 1 回だけ行います。
// 上限はセッション側のリトライ方針で決まり、b の設定では広がりません。
// バッチ実行や CLI のように利用者の操作を待たない呼び出し向けです。
func GenerateWithRetry(ctx context.Context, s *Session, b backoff.BackOff) (Outcome, error) {
	var out Outcome
	first := true
	op := func() error {
		var err error
		if first {
			first = false
			out, err = s.Generate(ctx)
		} else {
			out, err = s.Retry(ctx)
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		if out.Success || !out.Retryable {
			return nil
		}
		return errRetryable
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(generator.MaxAttempts-1)), ctx)
	err := backoff.Retry(op, policy)
	if err == nil || errors.Is(err, errRetryable) {
		return out, nil
	}
	return out, err
}

var errRetryable = errors.New("retryable outcome")
