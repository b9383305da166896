package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はユーザー入力の表示名を無害化するインターフェースを定義する。
// NFCカード名など、Discordや管理画面にそのまま表示される文字列に使用する。
type NameSanitizerService interface {
	// Sanitize は表示名からすべてのHTMLタグを除去して返す。
	// 許可タグはなく、テキストのみを通過させる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持する。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からHTMLタグを除去し、前後の空白を落として返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
