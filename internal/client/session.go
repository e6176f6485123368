// Package client はAPIの利用者側でセッショントークンを保持・伝搬する。
// ログイン着地URLからのトークン取り込み、ナビゲーションのガード、
// トークン付きAPI呼び出しを提供する。
package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session はクライアントが保持する認証セッション。
// ゼロ値は「セッションなし」を表す。
type Session struct {
	Token     string    `json:"token"`
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// IsZero はセッションが空かを返す。
func (s Session) IsZero() bool {
	return s.Token == ""
}

// Expired はnow時点で期限切れかを返す。有効期限のないセッションは期限切れにならない。
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// tokenClaims はトークンからクライアント側で読み取るクレーム。
type tokenClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"id"`
}

// SessionFromToken はトークンのクレームからユーザーIDと有効期限を読み取ったSessionを返す。
// 署名は検証しない（検証はサーバーの責務）。
func SessionFromToken(token string) (Session, error) {
	if token == "" {
		return Session{}, fmt.Errorf("token is empty")
	}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("failed to parse token: %w", err)
	}

	s := Session{Token: token, ID: claims.UserID}
	if s.ID == "" {
		s.ID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
