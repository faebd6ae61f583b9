package cart

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/httpclient"
	"github.com/nao1215/shopgate/pkg/middleware"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Server はカートサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はカートの永続化を担当する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// profileClient はトークン検証用のユーザーサービスへのHTTPクライアント。
	profileClient *httpclient.Client
	// productClient はスナップショット取得用の商品サービスへのHTTPクライアント。
	productClient *httpclient.Client
}

// NewServer は新しいカートサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("CART_DB_PATH", "/data/cart.db")
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		port:          port,
		store:         NewStore(sqlDB),
		db:            sqlDB,
		profileClient: httpclient.New(getEnvOr("USER_SERVICE_URL", "http://localhost:8001")),
		productClient: httpclient.New(getEnvOr("PRODUCT_SERVICE_URL", "http://localhost:8002")),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// カートのエンドポイントはすべてユーザーサービスによるトークン検証を要求する。
func (s *Server) setupRoutes() {
	authed := s.router.Group("/api/cart")
	authed.Use(middleware.RemoteAuth(s.profileClient))
	{
		// カート内容取得。注文オーケストレーションから呼び出される
		authed.GET("/", s.handleGetCart())
		// カートに商品を追加
		authed.POST("/items/", s.handleAddItem())
		// カートから商品を削除
		authed.DELETE("/items/:product_id/", s.handleRemoveItem())
		// カートを空にする
		authed.DELETE("/", s.handleClearCart())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "cart"})
	})
}

// addItemRequest はカート追加リクエストのJSON構造。
type addItemRequest struct {
	// ProductID は追加する商品のID。
	ProductID int64 `json:"product_id" binding:"required"`
	// Quantity は数量。
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// itemResponse はカート内商品のJSONレスポンス構造。
// 注文オーケストレーションが参照する契約であり、フィールド名は変更しないこと。
type itemResponse struct {
	// ProductID は商品ID。
	ProductID int64 `json:"product_id"`
	// ProductName はカート追加時点の商品名スナップショット。
	ProductName string `json:"product_name"`
	// Price はカート追加時点の価格スナップショット（小数点以下2桁の文字列）。
	Price string `json:"price"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
}

// cartResponse はカート全体のJSONレスポンス構造。
type cartResponse struct {
	// Items はカート内の商品一覧。
	Items []itemResponse `json:"items"`
	// Total はカート内の合計金額（小数点以下2桁の文字列）。
	Total string `json:"total"`
}

// productDetail は商品サービスから取得する商品情報。
type productDetail struct {
	// ID は商品の一意識別子。
	ID int64 `json:"id"`
	// Name は商品名。
	Name string `json:"name"`
	// Price は価格（10進文字列）。
	Price string `json:"price"`
	// IsActive は販売中フラグ。
	IsActive bool `json:"is_active"`
}

// toCartResponse はカート内容をJSONレスポンスに変換する。
// 合計金額は価格×数量の総和として計算する。
func toCartResponse(items []Item) cartResponse {
	responses := make([]itemResponse, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		responses = append(responses, itemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price.StringFixed(2),
			Quantity:    item.Quantity,
		})
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return cartResponse{Items: responses, Total: total.StringFixed(2)}
}

// handleGetCart はカート内容取得を処理するハンドラを返す。
func (s *Server) handleGetCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		items, err := s.store.ListItems(c.Request.Context(), ident.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カート内容の取得に失敗しました"})
			log.Printf("カート取得エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		c.JSON(http.StatusOK, toCartResponse(items))
	}
}

// handleAddItem はカートへの商品追加を処理するハンドラを返す。
// 商品サービスから現在の商品名と価格を取得し、スナップショットとして保存する。
func (s *Server) handleAddItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		var detail productDetail
		err := s.productClient.GetJSON(c.Request.Context(), fmt.Sprintf("/api/products/%d/", req.ProductID), &detail)
		if err != nil {
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "商品サービスに接続できません"})
			log.Printf("商品取得エラー: product_id=%d, error=%v", req.ProductID, err)
			return
		}

		if !detail.IsActive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品は販売停止中です"})
			return
		}

		price, err := decimal.NewFromString(detail.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品価格の解析に失敗しました"})
			log.Printf("価格解析エラー: product_id=%d, price=%q, error=%v", req.ProductID, detail.Price, err)
			return
		}

		if err := s.store.UpsertItem(c.Request.Context(), Item{
			UserID:      ident.ID,
			ProductID:   req.ProductID,
			ProductName: detail.Name,
			Price:       price,
			Quantity:    req.Quantity,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カートへの追加に失敗しました"})
			log.Printf("カート追加エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		items, err := s.store.ListItems(c.Request.Context(), ident.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カート内容の取得に失敗しました"})
			log.Printf("カート取得エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		c.JSON(http.StatusCreated, toCartResponse(items))
	}
}

// handleRemoveItem はカートからの商品削除を処理するハンドラを返す。
func (s *Server) handleRemoveItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品IDが不正です"})
			return
		}

		removed, err := s.store.RemoveItem(c.Request.Context(), ident.ID, productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カートからの削除に失敗しました"})
			log.Printf("カート削除エラー: user_id=%d, error=%v", ident.ID, err)
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "カートに商品がありません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "カートから商品を削除しました"})
	}
}

// handleClearCart はカートのクリアを処理するハンドラを返す。
func (s *Server) handleClearCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		if err := s.store.Clear(c.Request.Context(), ident.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カートのクリアに失敗しました"})
			log.Printf("カートクリアエラー: user_id=%d, error=%v", ident.ID, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "カートを空にしました"})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
