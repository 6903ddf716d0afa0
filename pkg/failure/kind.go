// Package failure は失敗を固定の種別に分類し、技術ログとユーザー向けメッセージを分離します。
package failure

// Kind は閉じたエラー分類です。
type Kind string

const (
	KindGeneration   Kind = "GENERATION"
	KindExternalCall Kind = "EXTERNAL_CALL"
	KindPersistence  Kind = "PERSISTENCE"
	KindValidation   Kind = "VALIDATION"
	KindStyleStage   Kind = "STYLE_STAGE"
	KindUnknown      Kind = "UNKNOWN"
)

// Kinds は全分類を返します。
var Kinds = []Kind{KindGeneration, KindExternalCall, KindPersistence, KindValidation, KindStyleStage, KindUnknown}

type kindPolicy struct {
	message   string
	retryable bool
}

var policies = map[Kind]kindPolicy{
	KindGeneration: {
		message:   "We couldn't finish your design this time. Please try again.",
		retryable: true,
	},
	KindExternalCall: {
		message:   "Our design service is busy right now. Please try again in a moment.",
		retryable: true,
	},
	KindPersistence: {
		message:   "Your design was created but we couldn't save it. Please try again.",
		retryable: true,
	},
	KindValidation: {
		message:   "Something about this design request isn't quite right. Please review your answers.",
		retryable: false,
	},
	KindStyleStage: {
		message:   "We had trouble applying your chosen style. Please try again.",
		retryable: true,
	},
	KindUnknown: {
		message:   "Something unexpected happened. Please start a new design.",
		retryable: false,
	},
}

// UserMessage は種別ごとに固定されたユーザー向けメッセージです。技術情報は含みません。
func (k Kind) UserMessage() string {
	if p, ok := policies[k]; ok {
		return p.message
	}
	return policies[KindUnknown].message
}

// Retryable は種別から導かれるリトライ可否です。
func (k Kind) Retryable() bool {
	return policies[k].retryable
}

// Valid は k が閉じた分類の一員かを返します。
func (k Kind) Valid() bool {
	_, ok := policies[k]
	return ok
}
