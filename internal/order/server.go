package order

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/event"
	"github.com/nao1215/shopgate/pkg/httpclient"
	"github.com/nao1215/shopgate/pkg/middleware"
	_ "modernc.org/sqlite"
)

// Server は注文サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は注文の永続化を担当する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// orchestrator は注文作成のオーケストレーション処理。
	orchestrator *Orchestrator
	// profileClient はトークン検証用のユーザーサービスへのHTTPクライアント。
	profileClient *httpclient.Client
}

// NewServer は新しい注文サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
// busにはイベントバスを注入する。本番ではRedis、テストではインメモリ実装を渡す。
func NewServer(port string, bus event.Bus) (*Server, error) {
	dbPath := getEnvOr("ORDER_DB_PATH", "/data/order.db")
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	store := NewStore(sqlDB)
	cartClient := httpclient.New(getEnvOr("CART_SERVICE_URL", "http://localhost:8003"))
	productClient := httpclient.New(getEnvOr("PRODUCT_SERVICE_URL", "http://localhost:8002"))

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		port:          port,
		store:         store,
		db:            sqlDB,
		orchestrator:  NewOrchestrator(cartClient, productClient, bus, store),
		profileClient: httpclient.New(getEnvOr("USER_SERVICE_URL", "http://localhost:8001")),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 注文のエンドポイントはすべてユーザーサービスによるトークン検証を要求する。
func (s *Server) setupRoutes() {
	authed := s.router.Group("/api/orders")
	authed.Use(middleware.RemoteAuth(s.profileClient))
	{
		// 注文作成（オーケストレーション）
		authed.POST("/", s.handleCreateOrder())
		// 注文一覧取得
		authed.GET("/", s.handleListOrders())
		// 注文詳細取得
		authed.GET("/:id/", s.handleGetOrder())
		// 注文ステータス更新
		authed.PATCH("/:id/status/", s.handleUpdateStatus())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order"})
	})
}

// createOrderRequest は注文作成リクエストのJSON構造。
type createOrderRequest struct {
	// ShippingAddress は配送先住所。
	ShippingAddress string `json:"shipping_address" binding:"required"`
}

// updateStatusRequest はステータス更新リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は更新後のステータス。
	Status string `json:"status" binding:"required"`
}

// itemResponse は注文明細のJSONレスポンス構造。
type itemResponse struct {
	// ProductID は商品ID。
	ProductID int64 `json:"product_id"`
	// ProductName は注文時点の商品名スナップショット。
	ProductName string `json:"product_name"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
	// Price は注文時点の価格スナップショット（小数点以下2桁の文字列）。
	Price string `json:"price"`
}

// orderResponse は注文のJSONレスポンス構造。
type orderResponse struct {
	// ID は注文の一意識別子。
	ID int64 `json:"id"`
	// UserID は注文したユーザーのID。
	UserID int64 `json:"user_id"`
	// Status は注文ステータス。
	Status string `json:"status"`
	// TotalAmount は合計金額（小数点以下2桁の文字列）。
	TotalAmount string `json:"total_amount"`
	// ShippingAddress は配送先住所。
	ShippingAddress string `json:"shipping_address"`
	// Items は注文明細。一覧取得では省略される。
	Items []itemResponse `json:"items,omitempty"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// toOrderResponse はDB行をJSONレスポンスに変換する。
func toOrderResponse(o Order, items []Item) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
		})
	}
	return resp
}

// userNameFromIdentity はプロフィールから注文に記録する氏名キャッシュを組み立てる。
func userNameFromIdentity(ident middleware.Identity) string {
	firstName, _ := ident.Profile["first_name"].(string)
	lastName, _ := ident.Profile["last_name"].(string)
	return strings.TrimSpace(lastName + " " + firstName)
}

// handleCreateOrder は注文作成を処理するハンドラを返す。
// オーケストレーション処理に委譲し、失敗理由に応じたステータスコードを返す。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		token, _ := middleware.BearerToken(c)
		created, items, err := s.orchestrator.PlaceOrder(
			c.Request.Context(), ident.ID, ident.Email, userNameFromIdentity(ident), token, req.ShippingAddress)
		switch {
		case errors.Is(err, ErrCartUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "カートサービスに接続できません"})
			return
		case errors.Is(err, ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "カートが空です"})
			return
		case errors.Is(err, ErrReservationFailed):
			c.JSON(http.StatusConflict, gin.H{"error": "在庫の確保に失敗しました"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の作成に失敗しました"})
			log.Printf("注文作成エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		c.JSON(http.StatusCreated, toOrderResponse(created, items))
	}
}

// handleListOrders は注文一覧取得を処理するハンドラを返す。
// 認証済みユーザー自身の注文のみを返す。
func (s *Server) handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		orders, err := s.store.ListOrders(c.Request.Context(), ident.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		responses := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			responses = append(responses, toOrderResponse(o, nil))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetOrder は注文詳細取得を処理するハンドラを返す。
// 他人の注文へのアクセスは拒否する。
func (s *Server) handleGetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "注文IDが不正です"})
			return
		}

		o, items, err := s.store.GetOrder(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の取得に失敗しました"})
			log.Printf("注文取得エラー: order_id=%d, error=%v", id, err)
			return
		}

		if o.UserID != ident.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文へのアクセス権がありません"})
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(o, items))
	}
}

// handleUpdateStatus は注文ステータス更新を処理するハンドラを返す。
// 定義済みステータスのみ受け付け、他人の注文は更新できない。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "注文IDが不正です"})
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if !isValidStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ステータス %q は不正です", req.Status)})
			return
		}

		o, _, err := s.store.GetOrder(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の取得に失敗しました"})
			log.Printf("注文取得エラー: order_id=%d, error=%v", id, err)
			return
		}
		if o.UserID != ident.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文へのアクセス権がありません"})
			return
		}

		if err := s.store.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			log.Printf("ステータス更新エラー: order_id=%d, error=%v", id, err)
			return
		}

		updated, items, err := s.store.GetOrder(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の注文の取得に失敗しました"})
			log.Printf("注文取得エラー: order_id=%d, error=%v", id, err)
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(updated, items))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
