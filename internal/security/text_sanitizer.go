// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザーが入力した自由記述をプレーンテキストに正規化する。
// エンティティを戻した結果にタグが現れなくなるまで除去を繰り返すため、
// 保存される文字列はStrictPolicyを通しても変化しない。
// 「a < b」のようなタグにならない記号は残るので、HTMLに埋め込む側でエスケープする。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす回数の上限。
const maxSanitizePasses = 4

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去して前後の空白を落とし、maxRunes文字で切り詰める。
// maxRunesが0以下の場合は切り詰めない。
func (s *TextSanitizer) Sanitize(raw string, maxRunes int) string {
	text := s.strip(raw)
	text = strings.TrimSpace(text)
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		text = strings.TrimSpace(string([]rune(text)[:maxRunes]))
	}
	return text
}

func (s *TextSanitizer) strip(raw string) string {
	text := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return text
		}
		text = next
	}
	if html.UnescapeString(s.policy.Sanitize(text)) == text {
		return text
	}
	// 上限を超えて多重エンコードされた入力は最後まで戻してから山括弧ごと落とす
	for {
		next := html.UnescapeString(text)
		if next == text {
			break
		}
		text = next
	}
	return strings.NewReplacer("<", "", ">", "").Replace(text)
}
