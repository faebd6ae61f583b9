// API Gatewayサービスのエントリポイント。
// すべての外部リクエストを受け付け、レート制限を適用してから
// パス接頭辞に基づいてバックエンドサービスへプロキシ転送する。
package main

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/nao1215/shopgate/internal/gateway"
	"github.com/nao1215/shopgate/pkg/ratecounter"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// レート制限カウンタ用のRedisクライアント。ライフサイクルはここで管理する
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	server, err := gateway.NewServer(port, ratecounter.NewRedis(redisClient))
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("API Gatewayを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("API Gatewayの起動に失敗: %v", err)
	}
}
