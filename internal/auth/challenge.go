package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/launchboard/internal/model"
	"github.com/hitoshi/launchboard/internal/repository"
)

// challengeNoncePattern は署名メッセージ中のnonce行を抽出する。
var challengeNoncePattern = regexp.MustCompile(`(?m)^Nonce: ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\s*$`)

// Challenge はウォレットに署名させるメッセージとnonce。
type Challenge struct {
	Message   string    `json:"message"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChallengeIssuer は単回使用のnonceを含む署名メッセージを発行する。
type ChallengeIssuer struct {
	repo repository.NonceRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewChallengeIssuer はChallengeIssuerを生成する。
func NewChallengeIssuer(repo repository.NonceRepository, ttl time.Duration) *ChallengeIssuer {
	return &ChallengeIssuer{repo: repo, ttl: ttl, now: time.Now}
}

// Issue はアドレスに対するチャレンジを発行し、nonceを保存する。
func (c *ChallengeIssuer) Issue(ctx context.Context, address string) (*Challenge, error) {
	if !IsWalletAddress(address) {
		return nil, model.NewBadRequestError("address must be a 0x-prefixed 20-byte hex string")
	}

	nonce := uuid.NewString()
	now := c.now().UTC()
	challenge := &Challenge{
		Message:   ChallengeMessage(address, nonce, now),
		Nonce:     nonce,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.repo.Save(ctx, address, nonce, c.ttl); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}
	return challenge, nil
}

// Redeem は署名済みメッセージに含まれるnonceを消費する。
// nonceが含まれるが無効な場合はInvalidSignatureを返す。
// nonceが含まれない場合はrequiredがtrueのときのみInvalidSignatureを返す。
func (c *ChallengeIssuer) Redeem(ctx context.Context, address, message string, required bool) error {
	nonce := ExtractNonce(message)
	if nonce == "" {
		if required {
			return model.NewInvalidSignatureError(fmt.Errorf("message has no challenge nonce"))
		}
		return nil
	}

	ok, err := c.repo.Consume(ctx, address, nonce)
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		return model.NewInvalidSignatureError(fmt.Errorf("challenge nonce is unknown, used or expired"))
	}
	return nil
}

// ChallengeMessage はウォレットに提示する署名メッセージを組み立てる。
func ChallengeMessage(address, nonce string, issuedAt time.Time) string {
	var b strings.Builder
	b.WriteString("Sign in to Launchboard\n\n")
	b.WriteString("Address: " + strings.ToLower(address) + "\n")
	b.WriteString("Nonce: " + nonce + "\n")
	b.WriteString("Issued At: " + issuedAt.Format(time.RFC3339))
	return b.String()
}

// ExtractNonce は署名メッセージからnonceを取り出す。含まれない場合は空文字を返す。
func ExtractNonce(message string) string {
	m := challengeNoncePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return m[1]
}
