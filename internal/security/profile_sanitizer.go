// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は外部プロバイダーから受け取ったプロフィール値を
// 保存前に正規化する。表示名はbluemondayのStrictPolicyで全タグを除去し、
// Unicode NFCに正規化したうえで制御文字と連続空白を取り除く。
package security

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// MaxDisplayNameRunes は表示名の最大文字数。
const MaxDisplayNameRunes = 100

// ProfileSanitizer はプロフィール値の正規化を行う。
type ProfileSanitizer interface {
	// DisplayName はHTMLタグと制御文字を除去した表示名を返す。
	// 結果が空になった場合はfallbackを返す。
	DisplayName(raw, fallback string) string

	// AvatarURL はhttpsの絶対URLのみを通し、それ以外は空文字を返す。
	AvatarURL(raw string) string
}

// profileSanitizer はProfileSanitizerの実装。
// bluemondayのポリシーはゴルーチンセーフであり、共有して使用する。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// DisplayName は表示名を正規化する。
func (s *profileSanitizer) DisplayName(raw, fallback string) string {
	// StrictPolicyは & などをエスケープするため、タグ除去後に戻す
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	normalized := norm.NFC.String(stripped)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, normalized)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		return fallback
	}

	runes := []rune(cleaned)
	if len(runes) > MaxDisplayNameRunes {
		cleaned = strings.TrimSpace(string(runes[:MaxDisplayNameRunes]))
	}
	return cleaned
}

// AvatarURL はアバター画像URLを検証する。
func (s *profileSanitizer) AvatarURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}

// compile-time interface check
var _ ProfileSanitizer = (*profileSanitizer)(nil)
