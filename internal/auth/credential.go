package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/launchboard/internal/model"
)

// IdentitySource はログイン試行で提示された資格情報。
// 実装はGoogleAuthorizationとWalletSignatureのみ。
type IdentitySource interface {
	isIdentitySource()
	provider() string
}

// GoogleAuthorization はOAuthコールバックで受け取った認可コード。
type GoogleAuthorization struct {
	Code string
}

// WalletSignature はウォレットが署名したメッセージ。
type WalletSignature struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

func (GoogleAuthorization) isIdentitySource() {}
func (WalletSignature) isIdentitySource()     {}

func (GoogleAuthorization) provider() string { return model.ProviderGoogle }
func (WalletSignature) provider() string     { return model.ProviderEthereum }

// Verifier は資格情報を検証し、プロバイダー非依存のIdentityに変換する。
type Verifier struct {
	oauth        OAuthProvider
	oauthTimeout time.Duration
}

// NewVerifier はVerifierを生成する。oauthTimeoutが0以下の場合はタイムアウトを設けない。
func NewVerifier(oauth OAuthProvider, oauthTimeout time.Duration) *Verifier {
	return &Verifier{oauth: oauth, oauthTimeout: oauthTimeout}
}

// Verify は資格情報の種類に応じて一度だけ分岐し、検証済みIdentityを返す。
func (v *Verifier) Verify(ctx context.Context, src IdentitySource) (*model.Identity, error) {
	switch s := src.(type) {
	case GoogleAuthorization:
		return v.verifyGoogle(ctx, s)
	case WalletSignature:
		address, err := verifyWalletSignature(s)
		if err != nil {
			return nil, err
		}
		return &model.Identity{Provider: model.ProviderEthereum, ProviderID: address}, nil
	default:
		return nil, model.NewBadRequestError("unsupported credential")
	}
}

// verifyGoogle は認可コードをプロバイダーで検証する。
// プロバイダーの応答がoauthTimeoutを超えた場合はTimeout、それ以外の失敗はUpstreamProviderFailureとする。
func (v *Verifier) verifyGoogle(ctx context.Context, g GoogleAuthorization) (*model.Identity, error) {
	if g.Code == "" {
		return nil, model.NewBadRequestError("authorization code is required")
	}

	if v.oauthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.oauthTimeout)
		defer cancel()
	}

	info, err := v.oauth.ExchangeCode(ctx, g.Code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.NewTimeoutError("OAuth provider", err)
		}
		return nil, model.NewUpstreamProviderError(err)
	}
	if info == nil || info.ProviderUserID == "" {
		return nil, model.NewUpstreamProviderError(fmt.Errorf("provider returned no subject"))
	}
	if info.Email == "" {
		return nil, model.NewUpstreamProviderError(fmt.Errorf("provider returned no email"))
	}
	if !info.EmailVerified {
		return nil, model.NewUpstreamProviderError(fmt.Errorf("provider email is not verified"))
	}

	return &model.Identity{
		Provider:   model.ProviderGoogle,
		ProviderID: info.ProviderUserID,
		Name:       info.Name,
		Email:      info.Email,
		Avatar:     info.Picture,
	}, nil
}
