package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/launchboard/internal/auth"
	"github.com/hitoshi/launchboard/internal/model"
)

const (
	// defaultAPITimeout はAPI呼び出し1回あたりの既定タイムアウト。
	defaultAPITimeout = 10 * time.Second

	// maxErrorBodyBytes はエラーレスポンスとして読み取るボディの上限。
	maxErrorBodyBytes = 64 << 10
)

// UserProfile は /api/auth/me が返すユーザー情報。
type UserProfile struct {
	ID          string    `json:"id"`
	GoogleID    string    `json:"googleId,omitempty"`
	EthAddress  string    `json:"ethAddress,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Description string    `json:"description"`
	Title       string    `json:"title"`
	Avatar      string    `json:"avatar"`
	BannerImage string    `json:"bannerImage"`
	Banner      string    `json:"banner"`
	CreatedAt   time.Time `json:"createdAt"`
}

// APIClient は認証APIのHTTPクライアント。
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient はAPIClientを生成する。httpClientがnilの場合は既定のタイムアウト付きクライアントを使う。
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultAPITimeout}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// WalletChallenge はアドレスに対する署名チャレンジを取得する。
// GET /api/auth/metamask/nonce?address=
func (c *APIClient) WalletChallenge(ctx context.Context, address string) (*auth.Challenge, error) {
	q := url.Values{"address": []string{address}}
	var challenge auth.Challenge
	if err := c.do(ctx, http.MethodGet, "/api/auth/metamask/nonce?"+q.Encode(), "", nil, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// LoginWithWallet はウォレット署名でログインし、トークンを返す。
// POST /api/auth/metamask
func (c *APIClient) LoginWithWallet(ctx context.Context, ws auth.WalletSignature) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/metamask", "", ws, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", model.NewInternalError(fmt.Errorf("login response has no token"))
	}
	return resp.Token, nil
}

// Me はトークンのユーザー情報を取得する。
// GET /api/auth/me
func (c *APIClient) Me(ctx context.Context, token string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Logout はサーバーにログアウトを通知する。トークンはサーバー側で失効しない。
// POST /api/auth/logout
func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", "", nil, nil)
}

// GoogleLoginURL はブラウザで開くGoogleログイン開始URLを返す。
func (c *APIClient) GoogleLoginURL() string {
	return c.baseURL + "/api/auth/google"
}

func (c *APIClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError はエラーレスポンスのcodeからAuthErrorを復元する。
// codeが定義済みの種別でない場合（RATE_LIMITED、NOT_FOUND等のHTTP層のコードを含む）は
// ステータスから種別を決める。
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = json.Unmarshal(data, &body)

	kind, ok := model.ParseErrorKind(body.Code)
	if !ok {
		kind = kindForStatus(resp.StatusCode)
	}
	message := body.Error
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &model.AuthError{
		Kind:    kind,
		Message: message,
		Cause:   fmt.Errorf("server responded %d", resp.StatusCode),
	}
}

func kindForStatus(status int) model.ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return model.KindBadRequest
	case http.StatusUnauthorized:
		return model.KindInvalidToken
	case http.StatusNotFound:
		return model.KindUserNotFound
	case http.StatusConflict:
		return model.KindDuplicateIdentity
	case http.StatusGatewayTimeout:
		return model.KindTimeout
	case http.StatusBadGateway:
		return model.KindUpstreamProviderFailure
	default:
		return model.KindInternal
	}
}
