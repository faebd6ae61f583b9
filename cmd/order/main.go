// 注文サービスのエントリポイント。
// カート取得・在庫予約・注文永続化・イベント発行のオーケストレーションを担当する。
package main

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/nao1215/shopgate/internal/order"
	"github.com/nao1215/shopgate/pkg/event"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8004"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// イベント発行用のRedisクライアント。ライフサイクルはここで管理する
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	server, err := order.NewServer(port, event.NewRedisBus(redisClient))
	if err != nil {
		log.Fatalf("注文サーバーの初期化に失敗: %v", err)
	}

	log.Printf("注文サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("注文サービスの起動に失敗: %v", err)
	}
}
