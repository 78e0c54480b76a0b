// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はユーザー入力の商品名・店舗名をサニタイズし、
// 保存されたテキストが他のクライアントでそのまま表示されても安全であることを保証する。
// bluemondayのStrictPolicyで全てのHTMLタグを除去するプレーンテキスト方針を取る。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はユーザー入力名のサニタイズ機能のインターフェースを定義する。
// 商品登録・投票の保存前に使用される。
type NameSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、前後の空白を落とした
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たず、全てのHTML要素と属性を除去する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力をプレーンテキストへサニタイズする。
// StrictPolicyはテキストをHTMLエスケープして返すため、
// 表示側の二重エスケープを避けるためにアンエスケープして平文へ戻す。
func (s *nameSanitizer) Sanitize(input string) string {
	stripped := s.policy.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
