package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryNonceRepo はプロセス内メモリにnonceを保持するリポジトリ。
// REDIS_URL未設定の単一インスタンス構成で使用する。
type MemoryNonceRepo struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> 有効期限
	now     func() time.Time
}

// NewMemoryNonceRepo はMemoryNonceRepoを生成する。
func NewMemoryNonceRepo() *MemoryNonceRepo {
	return &MemoryNonceRepo{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Save はnonceをTTL付きで保存する。保存時に期限切れのエントリを掃除する。
func (r *MemoryNonceRepo) Save(_ context.Context, address, nonce string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, key)
		}
	}
	r.entries[walletNonceKey(address, nonce)] = now.Add(ttl)
	return nil
}

// Consume は有効なnonceを削除してtrueを返す。
func (r *MemoryNonceRepo) Consume(_ context.Context, address, nonce string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := walletNonceKey(address, nonce)
	expiresAt, ok := r.entries[key]
	if !ok {
		return false, nil
	}
	delete(r.entries, key)
	return r.now().Before(expiresAt), nil
}

// Len は保持しているエントリ数を返す。
func (r *MemoryNonceRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// compile-time interface check
var _ NonceRepository = (*MemoryNonceRepo)(nil)
