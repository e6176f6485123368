package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/launchboard/internal/model"
)

// SessionClaims はセッショントークンのクレーム。
// idは既存クライアント互換のため、subと同じユーザーIDを保持する。
type SessionClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"id"`
}

// TokenIssuer はHS256で署名したセッショントークンを発行・検証する。
// サーバー側に失効リストは持たず、期限切れのみがトークンを終了させる。
// 署名鍵を変更すると発行済みの全トークンが無効になる。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合はexpを付与しない。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーIDを埋め込んだトークンと有効期限を返す。
// 有効期限を設けない場合はゼロ値の時刻を返す。
func (i *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user ID is required")
	}

	now := i.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	var expiresAt time.Time
	if i.ttl > 0 {
		expiresAt = now.Add(i.ttl).Truncate(time.Second)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify はトークンを検証し、ユーザーIDを返す。
// 期限切れはTokenExpired、それ以外の失敗はInvalidTokenとなり、メッセージは区別しない。
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.NewTokenExpiredError(err)
		}
		return "", model.NewInvalidTokenError(err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", model.NewInvalidTokenError(fmt.Errorf("token has no user ID"))
	}

	return userID, nil
}

func (i *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return i.secret, nil
}

// StateTTL はOAuth state Cookieの有効期間。
const StateTTL = 10 * time.Minute

// StateSigner はOAuthのCSRF対策用stateと、それを束縛する署名付きCookie値を発行する。
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner はStateSignerを生成する。
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Issue はランダムなstateと、それを署名したCookie値を返す。
func (s *StateSigner) Issue() (state string, cookieValue string, err error) {
	state, err = generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        state,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
	}

	cookieValue, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state: %w", err)
	}
	return state, cookieValue, nil
}

// Verify はCookie値の署名と期限を検証し、コールバックのstateと一致するかを確認する。
func (s *StateSigner) Verify(cookieValue, state string) error {
	if cookieValue == "" || state == "" {
		return fmt.Errorf("missing oauth state")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(cookieValue, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("invalid oauth state cookie: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(state)) != 1 {
		return fmt.Errorf("oauth state mismatch")
	}
	return nil
}

// generateState は暗号的に安全なstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
