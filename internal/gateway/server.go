package gateway

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/middleware"
	"github.com/nao1215/shopgate/pkg/ratecounter"
)

// proxyTimeout はバックエンドサービスへの転送のタイムアウト。
const proxyTimeout = 30 * time.Second

// defaultRateLimit は1分あたりのリクエスト数上限のデフォルト値。
const defaultRateLimit = 60

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// serviceURLs はサービス名からベースURLへの対応。起動時に確定し、
	// 以降は変更しない。
	serviceURLs map[string]string
	// client はバックエンドへの転送に使用するHTTPクライアント。
	client *http.Client
}

// NewServer は新しいGatewayサーバーを生成する。
// counterにはレート制限用のカウンタストアを注入する。本番ではRedis、
// テストではインメモリ実装を渡す。
func NewServer(port string, counter ratecounter.Store) (*Server, error) {
	urls := map[string]string{
		ServiceUser:    getEnvOr("USER_SERVICE_URL", "http://localhost:8001"),
		ServiceProduct: getEnvOr("PRODUCT_SERVICE_URL", "http://localhost:8002"),
		ServiceCart:    getEnvOr("CART_SERVICE_URL", "http://localhost:8003"),
		ServiceOrder:   getEnvOr("ORDER_SERVICE_URL", "http://localhost:8004"),
	}

	limit := defaultRateLimit
	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTEが不正: %q", v)
		}
		limit = parsed
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))
	// 静的ファイルと管理画面はレート制限の対象外
	router.Use(middleware.RateLimit(counter, limit, []string{"/static/", "/admin/"}))

	s := &Server{
		router:      router,
		port:        port,
		serviceURLs: urls,
		client:      &http.Client{Timeout: proxyTimeout},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// /api/ 配下はすべてパス接頭辞に基づくプロキシ転送で処理する。
func (s *Server) setupRoutes() {
	s.router.Any("/api/*path", s.handleProxy())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	// /api/ 以外の未知のパスも転送先なしとして扱う
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
	})
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
