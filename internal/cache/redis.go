// Package cache はウォレットチャレンジ等の揮発データを保持するRedisクライアントを提供する。
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis操作のタイムアウト。
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// NewClient はRedis URLを解析し、疎通確認済みのクライアントを返す。
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	slog.Info("redis client connected",
		slog.String("addr", opts.Addr),
		slog.Int("pool_size", opts.PoolSize),
	)

	return client, nil
}

// ParseOptions はRedis URLから接続オプションを生成し、プールとタイムアウトを設定する。
func ParseOptions(redisURL string) (*redis.Options, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxIdleConns = 5

	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout

	return opts, nil
}

// Ping はRedisクライアントが応答するかを確認する。
func Ping(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
