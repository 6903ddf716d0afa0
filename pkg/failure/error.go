package failure

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Error は分類済みの失敗です。発生時点のスタックを保持します。
type Error struct {
	Kind     Kind
	Op       string
	Err      error
	terminal bool
	stack    []byte
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Terminal は同じ入力での再試行を禁止する失敗かを返します。
func (e *Error) Terminal() bool { return e.terminal }

// Stack は Wrap 時点のスタックトレースです。
func (e *Error) Stack() string { return string(e.stack) }

// Wrap は err に種別と操作名を付けます。err が nil なら nil を返します。
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, stack: debug.Stack()}
}

// WrapTerminal は Wrap と同じですが、再試行不可の印を付けます。
func WrapTerminal(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, terminal: true, stack: debug.Stack()}
}

// KindOf はエラーチェーンの最も外側の分類を返します。未分類なら UNKNOWN です。
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind.Valid() {
		return fe.Kind
	}
	return KindUnknown
}

type terminator interface {
	Terminal() bool
}

// IsTerminal はチェーン内のどこかに再試行不可の印があるかを返します。errors.Join の各要素も調べます。
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(terminator); ok && t.Terminal() {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return IsTerminal(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if IsTerminal(e) {
				return true
			}
		}
	}
	return false
}

func stackOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) && len(fe.stack) > 0 {
		return fe.Stack()
	}
	return string(debug.Stack())
}
