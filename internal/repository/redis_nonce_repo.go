package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// walletNonceKeyPrefix はウォレットチャレンジnonceのキー接頭辞。
const walletNonceKeyPrefix = "auth:wallet_nonce:"

// RedisNonceRepo はRedisを使用したチャレンジnonceリポジトリ。
// 複数インスタンス構成でnonceを共有するために使う。
type RedisNonceRepo struct {
	client *redis.Client
}

// NewRedisNonceRepo はRedisNonceRepoを生成する。
func NewRedisNonceRepo(client *redis.Client) *RedisNonceRepo {
	return &RedisNonceRepo{client: client}
}

// Save はnonceをTTL付きで保存する。
func (r *RedisNonceRepo) Save(ctx context.Context, address, nonce string, ttl time.Duration) error {
	if err := r.client.Set(ctx, walletNonceKey(address, nonce), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to save wallet nonce: %w", err)
	}
	return nil
}

// Consume はGETDELでnonceを原子的に取り出す。
// 同じnonceを並行に使った場合でもtrueになるのは1回だけ。
func (r *RedisNonceRepo) Consume(ctx context.Context, address, nonce string) (bool, error) {
	err := r.client.GetDel(ctx, walletNonceKey(address, nonce)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume wallet nonce: %w", err)
	}
	return true, nil
}

func walletNonceKey(address, nonce string) string {
	return walletNonceKeyPrefix + strings.ToLower(address) + ":" + nonce
}

// compile-time interface check
var _ NonceRepository = (*RedisNonceRepo)(nil)
