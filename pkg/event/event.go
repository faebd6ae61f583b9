package event

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// channelName はイベントを発行する共有チャンネル名。全サービス共通。
const channelName = "events"

// Event はチャンネルに発行されるイベントのワイヤフォーマット。
type Event struct {
	// ID はイベントの一意識別子。購読側の重複排除に使用する。
	ID string `json:"id"`
	// Type はイベントの種類（例: "order.created"）。
	Type string `json:"type"`
	// Data はイベント固有のデータ。
	Data any `json:"data"`
	// Timestamp はイベント発行日時（RFC3339形式）。
	Timestamp string `json:"timestamp"`
}

// Bus はイベント発行のインターフェース。
// 発行は常にベストエフォートであり、エラーは内部でログに記録して握りつぶす。
// イベント発行は通知目的であって、業務処理の正しさには依存させない。
type Bus interface {
	// Publish はイベントを共有チャンネルに発行する。
	Publish(ctx context.Context, eventType string, data any)
}

// RedisBus はRedis Pub/Subを使ったイベントバス。
// クライアントは呼び出し側が生成・クローズする。
type RedisBus struct {
	// client は注入されたRedisクライアント。
	client *redis.Client
}

// NewRedisBus は注入されたRedisクライアントを使うイベントバスを生成する。
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish はイベントをRedisの共有チャンネルに発行する。
// シリアライズ・発行の失敗はログに記録し、呼び出し元には返さない。
func (b *RedisBus) Publish(ctx context.Context, eventType string, data any) {
	payload, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[Event] イベントのシリアライズに失敗: type=%s, error=%v", eventType, err)
		return
	}

	if err := b.client.Publish(ctx, channelName, payload).Err(); err != nil {
		log.Printf("[Event] イベントの発行に失敗: type=%s, error=%v", eventType, err)
		return
	}
	log.Printf("[Event] イベントを発行: type=%s", eventType)
}
