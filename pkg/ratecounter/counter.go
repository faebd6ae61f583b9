package ratecounter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store はクライアント毎のリクエストカウンタを保持するストア。
// GetとSetは意図的に分離されている（read-then-writeは非アトミック）。
// 同一クライアントの並行リクエストで多少のカウントずれが生じるが、
// 近似的な制限として許容する。
type Store interface {
	// Get はキーの現在のカウントを返す。キーが存在しない、
	// または期限切れの場合は0を返す。
	Get(ctx context.Context, key string) (int, error)
	// Set はキーのカウントを設定し、有効期限をttl後にリセットする。
	Set(ctx context.Context, key string, count int, ttl time.Duration) error
}

// Redis はRedisをバックエンドとするカウンタストア。
// クライアントは呼び出し側が生成・クローズする（接続のライフサイクルを
// 明示的に所有するのはmain側）。
type Redis struct {
	// client は注入されたRedisクライアント。
	client *redis.Client
}

// NewRedis は注入されたRedisクライアントを使うカウンタストアを生成する。
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get はキーの現在のカウントを返す。
func (r *Redis) Get(ctx context.Context, key string) (int, error) {
	count, err := r.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("カウンタの取得に失敗: %w", err)
	}
	return count, nil
}

// Set はキーのカウントを設定し、有効期限を更新する。
func (r *Redis) Set(ctx context.Context, key string, count int, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, count, ttl).Err(); err != nil {
		return fmt.Errorf("カウンタの設定に失敗: %w", err)
	}
	return nil
}
