// 商品サービスのエントリポイント。
// 商品カタログの参照と、注文オーケストレーションからの在庫予約・解放を担当する。
package main

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/nao1215/shopgate/internal/product"
	"github.com/nao1215/shopgate/pkg/event"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8002"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// イベント発行用のRedisクライアント。ライフサイクルはここで管理する
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	server, err := product.NewServer(port, event.NewRedisBus(redisClient))
	if err != nil {
		log.Fatalf("商品サーバーの初期化に失敗: %v", err)
	}

	log.Printf("商品サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("商品サービスの起動に失敗: %v", err)
	}
}
