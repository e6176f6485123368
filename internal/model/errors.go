// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind は認証フローで発生するエラーの分類を表す。
// 判別子は固定集合であり、レスポンス形状から推測してはならない。
type ErrorKind string

// 定義済みエラー種別
const (
	KindBadRequest              ErrorKind = "BAD_REQUEST"
	KindInvalidSignature        ErrorKind = "INVALID_SIGNATURE"
	KindDuplicateIdentity       ErrorKind = "DUPLICATE_IDENTITY"
	KindInvalidToken            ErrorKind = "INVALID_TOKEN"
	KindTokenExpired            ErrorKind = "TOKEN_EXPIRED"
	KindUpstreamProviderFailure ErrorKind = "UPSTREAM_PROVIDER_FAILURE"
	KindTimeout                 ErrorKind = "TIMEOUT"
	KindUserNotFound            ErrorKind = "USER_NOT_FOUND"
	KindInternal                ErrorKind = "INTERNAL"
)

// クライアントに返すメッセージ。
// 署名不一致と不正形式、署名不正と期限切れを区別しない。
const (
	MsgInvalidSignature = "Invalid signature"
	MsgInvalidToken     = "Invalid token"
	MsgNoToken          = "No token provided"
	MsgUserNotFound     = "User not found"
	MsgServerError      = "Server error"
)

// AuthError は認証フローの統一エラー型。
// Causeはサーバー側のログにのみ使用し、クライアントには返さない。
type AuthError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap はerrors.Is/errors.Asで原因を辿れるようにする。
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// ParseErrorKind はエラーコード文字列を定義済みのErrorKindに変換する。
// 定義済みでないコードの場合はfalseを返す。
func ParseErrorKind(code string) (ErrorKind, bool) {
	switch kind := ErrorKind(code); kind {
	case KindBadRequest, KindInvalidSignature, KindDuplicateIdentity,
		KindInvalidToken, KindTokenExpired, KindUpstreamProviderFailure,
		KindTimeout, KindUserNotFound, KindInternal:
		return kind, true
	default:
		return "", false
	}
}

// KindOf はエラーチェーンからErrorKindを取り出す。
// AuthErrorを含まない場合はKindInternalを返す。
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind はエラーチェーンに指定種別のAuthErrorが含まれるかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}

// PublicMessage はクライアントに返してよいメッセージを返す。
// AuthError以外は内部詳細を隠して汎用メッセージにする。
func PublicMessage(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Message
	}
	return MsgServerError
}

// NewBadRequestError は不正な資格情報ペイロードのエラーを生成する。
func NewBadRequestError(reason string) *AuthError {
	return &AuthError{Kind: KindBadRequest, Message: reason}
}

// NewInvalidSignatureError はウォレット署名検証失敗のエラーを生成する。
func NewInvalidSignatureError(cause error) *AuthError {
	return &AuthError{Kind: KindInvalidSignature, Message: MsgInvalidSignature, Cause: cause}
}

// NewDuplicateIdentityError は同一アンカーの同時初回ログインによる競合エラーを生成する。
func NewDuplicateIdentityError(cause error) *AuthError {
	return &AuthError{Kind: KindDuplicateIdentity, Message: "Identity already registered", Cause: cause}
}

// NewInvalidTokenError はトークン検証失敗のエラーを生成する。
func NewInvalidTokenError(cause error) *AuthError {
	return &AuthError{Kind: KindInvalidToken, Message: MsgInvalidToken, Cause: cause}
}

// NewMissingTokenError はAuthorizationヘッダーにトークンがない場合のエラーを生成する。
func NewMissingTokenError() *AuthError {
	return &AuthError{Kind: KindInvalidToken, Message: MsgNoToken}
}

// NewTokenExpiredError はトークン期限切れのエラーを生成する。
// メッセージはInvalidTokenと同一にする。
func NewTokenExpiredError(cause error) *AuthError {
	return &AuthError{Kind: KindTokenExpired, Message: MsgInvalidToken, Cause: cause}
}

// NewUpstreamProviderError はOAuthプロバイダーの失敗を表すエラーを生成する。
func NewUpstreamProviderError(cause error) *AuthError {
	return &AuthError{Kind: KindUpstreamProviderFailure, Message: "Authentication provider failed", Cause: cause}
}

// NewTimeoutError は外部呼び出しのタイムアウトエラーを生成する。
func NewTimeoutError(operation string, cause error) *AuthError {
	return &AuthError{Kind: KindTimeout, Message: operation + " timed out", Cause: cause}
}

// NewUserNotFoundError はトークンは有効だがユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *AuthError {
	return &AuthError{Kind: KindUserNotFound, Message: MsgUserNotFound}
}

// NewInternalError は想定外のエラーをラップする。
func NewInternalError(cause error) *AuthError {
	return &AuthError{Kind: KindInternal, Message: MsgServerError, Cause: cause}
}
