package client

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/hitoshi/launchboard/internal/auth"
)

// 画面遷移先。
const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"
)

// Navigation は画面遷移の指示。
type Navigation struct {
	To         string // 遷移先パス
	ReplaceURL string // 空でない場合、履歴上の現在URLをこの値に置き換える
	Error      string // ログイン失敗時のエラーコード
}

// WalletAPI はウォレットログインに必要なAPI。
type WalletAPI interface {
	LoginWithWallet(ctx context.Context, ws auth.WalletSignature) (string, error)
	Me(ctx context.Context, token string) (*UserProfile, error)
}

// Propagator はログイン結果のトークンをSessionStoreに取り込む。
type Propagator struct {
	store *SessionStore
	api   WalletAPI
}

// NewPropagator はPropagatorを生成する。
func NewPropagator(store *SessionStore, api WalletAPI) *Propagator {
	return &Propagator{store: store, api: api}
}

// HandleRedirect はOAuthログインの着地URLを処理する。
// tokenがあればセッションを保存してダッシュボードへ、なければログイン画面へ遷移させる。
// トークンを履歴に残さないため、ReplaceURLにはtokenを除いたURLを返す。
func (p *Propagator) HandleRedirect(u *url.URL) Navigation {
	query := u.Query()

	if code := query.Get("error"); code != "" {
		return Navigation{To: LoginPath, Error: code}
	}

	token := query.Get("token")
	if token == "" {
		return Navigation{To: LoginPath}
	}

	session, err := SessionFromToken(token)
	if err != nil {
		slog.Warn("landing token is malformed", slog.String("error", err.Error()))
		return Navigation{To: LoginPath}
	}
	if err := p.store.Login(session); err != nil {
		slog.Warn("failed to store session", slog.String("error", err.Error()))
		return Navigation{To: LoginPath}
	}
	if !p.store.IsAuthenticated() {
		p.store.Logout()
		return Navigation{To: LoginPath}
	}

	query.Del("token")
	cleaned := *u
	cleaned.RawQuery = query.Encode()

	return Navigation{To: DashboardPath, ReplaceURL: cleaned.String()}
}

// CompleteWalletLogin はウォレット署名でログインし、セッションを保存する。
// ユーザー情報の取得は失敗してもログイン自体は成功とする。
// ログインに失敗した場合はセッションを保存しない。
func (p *Propagator) CompleteWalletLogin(ctx context.Context, ws auth.WalletSignature) (Session, error) {
	token, err := p.api.LoginWithWallet(ctx, ws)
	if err != nil {
		p.store.Logout()
		return Session{}, err
	}

	session, err := SessionFromToken(token)
	if err != nil {
		p.store.Logout()
		return Session{}, err
	}

	if profile, err := p.api.Me(ctx, token); err == nil {
		session.ID = profile.ID
		session.Name = profile.Name
		session.Email = profile.Email
	} else {
		slog.Warn("failed to fetch profile after login", slog.String("error", err.Error()))
	}

	if err := p.store.Login(session); err != nil {
		return Session{}, err
	}
	return session, nil
}
