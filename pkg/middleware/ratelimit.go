package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/ratecounter"
)

// rateLimitWindow はレート制限の固定ウィンドウ長。
const rateLimitWindow = 60 * time.Second

// rateLimitKeyPrefix はカウンタストアのキー接頭辞。
const rateLimitKeyPrefix = "rate_limit:"

// RateLimit はクライアント毎のリクエスト数を固定ウィンドウで制限する
// Ginミドルウェアを返す。skipPrefixesに一致するパス（静的ファイル、
// 管理画面など）は制限の対象外とする。
//
// ウィンドウ内でlimit回まで許可し、超過分は429で拒否する。拒否時は
// カウンタを増やさない。許可したレスポンスにはX-RateLimit-Limitと
// X-RateLimit-Remainingヘッダーを付与する。
func RateLimit(store ratecounter.Store, limit int, skipPrefixes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		key := rateLimitKeyPrefix + clientKey(c)
		ctx := c.Request.Context()

		count, err := store.Get(ctx, key)
		if err != nil {
			// カウンタストア障害時はフェイルオープンで通す
			log.Printf("[RateLimit] カウンタの取得に失敗: %v", err)
			c.Next()
			return
		}

		if count >= limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Maximum %d requests per minute allowed", limit),
			})
			return
		}

		// read-then-writeは非アトミック。同一クライアントの並行リクエストで
		// 多少のカウントずれが生じるが、近似的な制限として許容する。
		if err := store.Set(ctx, key, count+1, rateLimitWindow); err != nil {
			log.Printf("[RateLimit] カウンタの更新に失敗: %v", err)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, limit-count-1)))
		c.Next()
	}
}

// clientKey はレート制限に使うクライアント識別子を返す。
// X-Forwarded-Forヘッダーがあれば先頭のエントリを、なければ接続元アドレス
// を使用する。ヘッダーが信頼できるプロキシ経由かどうかは検証していない。
// TODO: 信頼済みプロキシのリストを設定し、それ以外からのX-Forwarded-Forを無視する。
func clientKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	return c.ClientIP()
}
