// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/launchboard/internal/model"
)

// ストアの一意制約違反を表すエラー。
// 呼び出し側はerrors.Isで判定し、DuplicateIdentity等のドメインエラーへ変換する。
var (
	// ErrDuplicateAnchor は google_id または eth_address の一意制約違反。
	ErrDuplicateAnchor = errors.New("duplicate identity anchor")
	// ErrDuplicateEmail は email の一意制約違反。
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByAnchor はプロバイダーに対応するアンカーカラムの完全一致でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByAnchor(ctx context.Context, provider, providerID string) (*model.User, error)

	// Create はユーザーを作成する。IDとタイムスタンプが未設定の場合は補完する。
	// 一意制約違反時はErrDuplicateAnchorまたはErrDuplicateEmailをラップして返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// NonceRepository はウォレットログイン用チャレンジnonceの保存インターフェース。
// nonceは単回使用であり、Consumeで取り出すと同時に削除される。
type NonceRepository interface {
	// Save はアドレスに紐づくnonceをTTL付きで保存する。
	Save(ctx context.Context, address, nonce string, ttl time.Duration) error

	// Consume はnonceが有効であれば削除してtrueを返す。
	// 存在しない・期限切れの場合はfalseを返す。
	Consume(ctx context.Context, address, nonce string) (bool, error)
}
