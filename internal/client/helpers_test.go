package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// signedToken はテスト用にユーザーIDと有効期限を持つトークンを生成する。
// expiresAtがゼロ値の場合はexpを付与しない。
func signedToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID, IssuedAt: jwt.NewNumericDate(time.Now())},
		UserID:           userID,
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("client-test-secret"))
	require.NoError(t, err)
	return token
}

// memoryPersister はPersisterのインメモリ実装。
type memoryPersister struct {
	saved   Session
	saveErr error
	saves   int
	clears  int
}

func (m *memoryPersister) Load() (Session, error) { return m.saved, nil }

func (m *memoryPersister) Save(s Session) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = s
	return nil
}

func (m *memoryPersister) Clear() error {
	m.clears++
	m.saved = Session{}
	return nil
}

var _ Persister = (*memoryPersister)(nil)
