// ユーザーサービスのエントリポイント。
// ユーザー登録・ログイン・JWTトークンの発行と検証を担当する。
package main

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/nao1215/shopgate/internal/user"
	"github.com/nao1215/shopgate/pkg/event"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8001"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// イベント発行用のRedisクライアント。ライフサイクルはここで管理する
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	server, err := user.NewServer(port, event.NewRedisBus(redisClient))
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("ユーザーサービスの起動に失敗: %v", err)
	}
}
