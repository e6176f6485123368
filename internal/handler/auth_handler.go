// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/launchboard/internal/auth"
	"github.com/hitoshi/launchboard/internal/middleware"
	"github.com/hitoshi/launchboard/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// maxWalletBodyBytes はウォレットログインのリクエストボディ上限。
	maxWalletBodyBytes = 16 << 10
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state string) string
	LoginWithGoogle(ctx context.Context, code string) (*auth.LoginResult, error)
	LoginWithWallet(ctx context.Context, ws auth.WalletSignature) (*auth.LoginResult, error)
	IssueWalletChallenge(ctx context.Context, address string) (*auth.Challenge, error)
	VerifyToken(token string) (string, error)
	UserByID(ctx context.Context, userID string) (*model.User, error)
}

// StateManager はOAuthの中間state（CSRF対策）の発行と検証を行う。
type StateManager interface {
	Issue() (state string, cookieValue string, err error)
	Verify(cookieValue, state string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	SuccessURL   string // OAuth成功時のリダイレクト先。?token= を付与する
	FailureURL   string // OAuth失敗時のリダイレクト先。?error= を付与する
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	states  StateManager
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, states StateManager, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		states:  states,
		config:  config,
	}
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /api/auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, cookieValue, err := h.states.Issue()
	if err != nil {
		slog.Error("failed to issue oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 署名済みstateをCookieに保存（CSRF対策）
	h.setStateCookie(w, cookieValue, int(auth.StateTTL/time.Second))

	http.Redirect(w, r, h.service.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// 成功時はトークンをクエリに付けてフロントエンドへ、失敗時は失敗ルートへリダイレクトする。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）。stateクッキーは結果にかかわらず削除する
	var cookieValue string
	if cookie, err := r.Cookie(oauthStateCookie); err == nil {
		cookieValue = cookie.Value
	}
	h.setStateCookie(w, "", -1)

	if err := h.states.Verify(cookieValue, query.Get("state")); err != nil {
		slog.Warn("oauth state mismatch", slog.String("error", err.Error()))
		h.redirectFailure(w, r, model.KindBadRequest)
		return
	}

	// 2. プロバイダーが同意拒否などのエラーを返した場合
	if providerErr := query.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error", slog.String("provider_error", providerErr))
		h.redirectFailure(w, r, model.KindUpstreamProviderFailure)
		return
	}

	// 3. 認証処理
	result, err := h.service.LoginWithGoogle(r.Context(), query.Get("code"))
	if err != nil {
		h.redirectFailure(w, r, model.KindOf(err))
		return
	}

	// 4. フロントエンドにリダイレクト
	http.Redirect(w, r, appendQuery(h.config.SuccessURL, "token", result.Token), http.StatusTemporaryRedirect)
}

// walletLoginResponse はウォレットログイン成功時のレスポンス。
type walletLoginResponse struct {
	Token string `json:"token"`
}

// WalletLogin はウォレット署名でログインする。
// POST /api/auth/metamask {"address","signature","message"}
func (h *AuthHandler) WalletLogin(w http.ResponseWriter, r *http.Request) {
	var ws auth.WalletSignature
	body := http.MaxBytesReader(w, r.Body, maxWalletBodyBytes)
	if err := json.NewDecoder(body).Decode(&ws); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, model.NewBadRequestError("request body is required"))
			return
		}
		writeError(w, r, model.NewBadRequestError("request body must be a JSON object"))
		return
	}

	result, err := h.service.LoginWithWallet(r.Context(), ws)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, walletLoginResponse{Token: result.Token})
}

// WalletNonce はウォレットに署名させるチャレンジを発行する。
// GET /api/auth/metamask/nonce?address=0x...
func (h *AuthHandler) WalletNonce(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.service.IssueWalletChallenge(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, challenge)
}

// Me は現在のログインユーザー情報を返す。
// BearerAuthミドルウェアの後に配置する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, model.NewMissingTokenError())
		return
	}

	user, err := h.service.UserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// Logout はステートレスなログアウト。トークンはサーバー側で失効させず、クライアントが破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setStateCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/api/auth",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request, kind model.ErrorKind) {
	http.Redirect(w, r, appendQuery(h.config.FailureURL, "error", string(kind)), http.StatusTemporaryRedirect)
}

// appendQuery はURLにクエリパラメータを追加する。既存のクエリは保持する。
func appendQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
