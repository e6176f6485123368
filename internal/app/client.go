package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hitoshi/launchboard/internal/client"
	"github.com/hitoshi/launchboard/internal/config"
)

// errNotLoggedIn は保存済みセッションがない場合のエラー。
var errNotLoggedIn = errors.New("not logged in; run wallet-login first")

// runClient はCLIクライアント用サブコマンドを実行する。
func runClient(w io.Writer, cmd Command, _ []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	path := cfg.SessionFile
	if path == "" {
		if path, err = client.DefaultSessionPath(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := client.NewSessionStore(client.NewFilePersister(path))
	api := client.NewAPIClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout})

	switch cmd {
	case CommandWalletLogin:
		return runWalletLogin(ctx, w, cfg, store, api)
	case CommandWhoami:
		return runWhoami(ctx, w, store, api)
	case CommandLogout:
		return runLogout(ctx, store, api)
	default:
		return fmt.Errorf("unsupported client command %q", cmd)
	}
}

// runWalletLogin はチャレンジを取得して署名し、発行されたトークンをセッションファイルに保存する。
func runWalletLogin(ctx context.Context, w io.Writer, cfg *config.ClientConfig, store *client.SessionStore, api *client.APIClient) error {
	wallet, err := client.LoadWallet(cfg.WalletPrivateKey)
	if err != nil {
		return fmt.Errorf("WALLET_PRIVATE_KEY: %w", err)
	}

	challenge, err := api.WalletChallenge(ctx, wallet.Address())
	if err != nil {
		return fmt.Errorf("failed to get wallet challenge: %w", err)
	}

	signed, err := wallet.Sign(challenge.Message)
	if err != nil {
		return err
	}

	session, err := client.NewPropagator(store, api).CompleteWalletLogin(ctx, signed)
	if err != nil {
		return fmt.Errorf("wallet login failed: %w", err)
	}

	slog.Info("wallet login succeeded",
		slog.String("address", wallet.Address()),
		slog.String("user_id", session.ID),
	)

	return writeJSON(w, map[string]any{
		"id":        session.ID,
		"name":      session.Name,
		"email":     session.Email,
		"expiresAt": session.ExpiresAt,
	})
}

// runWhoami は保存済みセッションのトークンで/meを呼び、プロフィールを表示する。
func runWhoami(ctx context.Context, w io.Writer, store *client.SessionStore, api *client.APIClient) error {
	token, ok := store.Token()
	if !ok {
		return errNotLoggedIn
	}

	profile, err := api.Me(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	return writeJSON(w, profile)
}

// runLogout はサーバーへログアウトを通知し、セッションファイルを削除する。
// サーバー側はステートレスなので、通知の失敗はログのみとする。
func runLogout(ctx context.Context, store *client.SessionStore, api *client.APIClient) error {
	if err := api.Logout(ctx); err != nil {
		slog.Warn("logout request failed", slog.String("error", err.Error()))
	}
	store.Logout()
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

