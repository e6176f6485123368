package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/launchboard/internal/auth"
	"github.com/hitoshi/launchboard/internal/client"
)

// fakeAuthAPI はウォレットログインに必要な認証APIを最小限に模したサーバー。
type fakeAuthAPI struct {
	issuer      *auth.TokenIssuer
	logoutCalls atomic.Int32
	loggedIn    atomic.Value // 署名されたアドレス
}

func newFakeAuthAPI(t *testing.T) (*fakeAuthAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAuthAPI{issuer: auth.NewTokenIssuer("test-jwt-secret-32bytes-long!!!!", time.Hour)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/metamask/nonce", func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")
		writeTestJSON(w, http.StatusOK, auth.Challenge{
			Message:   auth.ChallengeMessage(address, "nonce-1", time.Now()),
			Nonce:     "nonce-1",
			ExpiresAt: time.Now().Add(5 * time.Minute),
		})
	})
	mux.HandleFunc("POST /api/auth/metamask", func(w http.ResponseWriter, r *http.Request) {
		var ws auth.WalletSignature
		if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "bad", "code": "BAD_REQUEST"})
			return
		}
		sig, err := hexutil.Decode(ws.Signature)
		if err != nil || len(sig) != 65 {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature", "code": "INVALID_SIGNATURE"})
			return
		}
		sig[64] -= 27
		pub, err := crypto.SigToPub(auth.PersonalMessageHash(ws.Message), sig)
		if err != nil || !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), ws.Address) {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature", "code": "INVALID_SIGNATURE"})
			return
		}
		api.loggedIn.Store(ws.Address)

		token, _, err := api.issuer.Issue("user-1")
		if err != nil {
			writeTestJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error", "code": "INTERNAL"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"token": token})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, err := api.issuer.Verify(token)
		if err != nil {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token", "code": "INVALID_TOKEN"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{
			"id":    userID,
			"name":  "wallet user",
			"email": "wallet@eth.user",
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		api.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setClientEnv(t *testing.T, baseURL string) (sessionPath string, address string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sessionPath = filepath.Join(t.TempDir(), "session.json")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("WALLET_PRIVATE_KEY", hexutil.Encode(crypto.FromECDSA(key)))
	t.Setenv("SESSION_FILE", sessionPath)
	// サーバー設定は不要
	clearRequiredEnv(t)

	return sessionPath, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestRun_WalletLoginWhoamiLogout(t *testing.T) {
	api, srv := newFakeAuthAPI(t)
	sessionPath, address := setClientEnv(t, srv.URL)

	// 1. wallet-login
	var out bytes.Buffer
	require.NoError(t, Run(&out, []string{"wallet-login"}))
	assert.Equal(t, address, api.loggedIn.Load())

	var loginOut map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &loginOut))
	assert.Equal(t, "user-1", loginOut["id"])
	assert.Equal(t, "wallet user", loginOut["name"])

	saved, err := client.NewFilePersister(sessionPath).Load()
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Token)
	assert.Equal(t, "user-1", saved.ID)

	// 2. whoami は保存済みトークンで/meを呼ぶ
	out.Reset()
	require.NoError(t, Run(&out, []string{"whoami"}))
	var profile client.UserProfile
	require.NoError(t, json.Unmarshal(out.Bytes(), &profile))
	assert.Equal(t, "user-1", profile.ID)
	assert.Equal(t, "wallet@eth.user", profile.Email)

	// 3. logout はセッションファイルを削除する
	require.NoError(t, Run(&bytes.Buffer{}, []string{"logout"}))
	assert.Equal(t, int32(1), api.logoutCalls.Load())
	_, err = os.Stat(sessionPath)
	assert.True(t, os.IsNotExist(err), "session file should be removed, stat err = %v", err)

	// 4. ログアウト後のwhoamiはエラー
	err = Run(&bytes.Buffer{}, []string{"whoami"})
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestRun_WalletLogin_MissingKey(t *testing.T) {
	_, srv := newFakeAuthAPI(t)
	sessionPath, _ := setClientEnv(t, srv.URL)
	t.Setenv("WALLET_PRIVATE_KEY", "")

	err := Run(&bytes.Buffer{}, []string{"wallet-login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_PRIVATE_KEY")

	_, statErr := os.Stat(sessionPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_WalletLogin_RejectedLeavesNoSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/metamask/nonce" {
			writeTestJSON(w, http.StatusOK, auth.Challenge{Message: "Sign in", Nonce: "n"})
			return
		}
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature", "code": "INVALID_SIGNATURE"})
	}))
	t.Cleanup(srv.Close)
	sessionPath, _ := setClientEnv(t, srv.URL)

	err := Run(&bytes.Buffer{}, []string{"wallet-login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet login failed")

	_, statErr := os.Stat(sessionPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_Whoami_NotLoggedIn(t *testing.T) {
	_, srv := newFakeAuthAPI(t)
	setClientEnv(t, srv.URL)

	err := Run(&bytes.Buffer{}, []string{"whoami"})
	assert.ErrorIs(t, err, errNotLoggedIn)
}
