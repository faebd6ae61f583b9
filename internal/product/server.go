package product

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/event"
	"github.com/nao1215/shopgate/pkg/middleware"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Server は商品サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は商品とカテゴリの永続化を担当する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// bus はイベント発行用のバス。
	bus event.Bus
}

// NewServer は新しい商品サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string, bus event.Bus) (*Server, error) {
	dbPath := getEnvOr("PRODUCT_DB_PATH", "/data/product.db")
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
		router: router,
		port:   port,
		store:  NewStore(sqlDB),
		db:     sqlDB,
		bus:    bus,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	products := s.router.Group("/api/products")
	{
		// 商品一覧取得
		products.GET("/", s.handleListProducts())
		// 商品登録
		products.POST("/", s.handleCreateProduct())
		// 商品詳細取得
		products.GET("/:id/", s.handleGetProduct())
		// 在庫予約。注文オーケストレーションから呼び出される
		products.POST("/:id/reserve/", s.handleReserve())
		// 在庫解放。注文失敗時の補償処理から呼び出される
		products.POST("/:id/release/", s.handleRelease())
	}

	categories := s.router.Group("/api/categories")
	{
		// カテゴリ一覧取得
		categories.GET("/", s.handleListCategories())
		// カテゴリ登録
		categories.POST("/", s.handleCreateCategory())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "product"})
	})
}

// createProductRequest は商品登録リクエストのJSON構造。
type createProductRequest struct {
	// CategoryID は所属カテゴリのID。
	CategoryID int64 `json:"category_id"`
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Description は商品の説明。
	Description string `json:"description"`
	// Price は価格（10進文字列。例: "25.50"）。
	Price string `json:"price" binding:"required"`
	// StockQuantity は初期在庫数。
	StockQuantity int `json:"stock_quantity" binding:"min=0"`
}

// createCategoryRequest はカテゴリ登録リクエストのJSON構造。
type createCategoryRequest struct {
	// Name はカテゴリ名。
	Name string `json:"name" binding:"required"`
	// Description はカテゴリの説明。
	Description string `json:"description"`
}

// stockRequest は在庫予約・解放リクエストのJSON構造。
type stockRequest struct {
	// Quantity は予約または解放する数量。
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// productResponse は商品のJSONレスポンス構造。
type productResponse struct {
	// ID は商品の一意識別子。
	ID int64 `json:"id"`
	// CategoryID は所属カテゴリのID。
	CategoryID int64 `json:"category_id"`
	// Name は商品名。
	Name string `json:"name"`
	// Description は商品の説明。
	Description string `json:"description"`
	// Price は価格（小数点以下2桁の文字列）。
	Price string `json:"price"`
	// StockQuantity は在庫数。
	StockQuantity int `json:"stock_quantity"`
	// IsActive は販売中フラグ。
	IsActive bool `json:"is_active"`
}

// categoryResponse はカテゴリのJSONレスポンス構造。
type categoryResponse struct {
	// ID はカテゴリの一意識別子。
	ID int64 `json:"id"`
	// Name はカテゴリ名。
	Name string `json:"name"`
	// Description はカテゴリの説明。
	Description string `json:"description"`
}

// toProductResponse はDB行をJSONレスポンスに変換する。
func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
	}
}

// handleListProducts は商品一覧取得を処理するハンドラを返す。
// categoryクエリパラメータでカテゴリの絞り込みができる。
func (s *Server) handleListProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		var categoryID int64
		if v := c.Query("category"); v != "" {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "categoryパラメータが不正です"})
				return
			}
			categoryID = parsed
		}

		products, err := s.store.ListProducts(c.Request.Context(), categoryID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品一覧の取得に失敗しました"})
			log.Printf("商品一覧取得エラー: %v", err)
			return
		}

		responses := make([]productResponse, 0, len(products))
		for _, p := range products {
			responses = append(responses, toProductResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetProduct は商品詳細取得を処理するハンドラを返す。
func (s *Server) handleGetProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品IDが不正です"})
			return
		}

		p, err := s.store.GetProduct(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(p))
	}
}

// handleCreateProduct は商品登録を処理するハンドラを返す。
func (s *Server) handleCreateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "価格が不正です"})
			return
		}

		created, err := s.store.CreateProduct(c.Request.Context(), Product{
			CategoryID:    req.CategoryID,
			Name:          req.Name,
			Description:   req.Description,
			Price:         price,
			StockQuantity: req.StockQuantity,
			IsActive:      true,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の登録に失敗しました"})
			log.Printf("商品登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toProductResponse(created))
	}
}

// handleReserve は在庫予約を処理するハンドラを返す。
// 在庫数が足りる販売中の商品に対してのみ成功する。成功時はProductReserved
// イベントを発行する。
func (s *Server) handleReserve() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品IDが不正です"})
			return
		}

		var req stockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		remaining, err := s.store.Reserve(c.Request.Context(), id, req.Quantity)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		case errors.Is(err, ErrInactiveProduct):
			c.JSON(http.StatusConflict, gin.H{"error": "商品は販売停止中です"})
			return
		case errors.Is(err, ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "在庫が不足しています"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫の予約に失敗しました"})
			log.Printf("在庫予約エラー: product_id=%d, error=%v", id, err)
			return
		}

		s.bus.Publish(c.Request.Context(), event.TypeProductReserved, event.ProductReservedData{
			ProductID: id,
			Quantity:  req.Quantity,
		})

		c.JSON(http.StatusOK, gin.H{"product_id": id, "quantity": req.Quantity, "stock_quantity": remaining})
	}
}

// handleRelease は在庫解放を処理するハンドラを返す。
// 補償処理からベストエフォートで呼び出される。成功時はProductReleased
// イベントを発行する。
func (s *Server) handleRelease() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "商品IDが不正です"})
			return
		}

		var req stockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		remaining, err := s.store.Release(c.Request.Context(), id, req.Quantity)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫の解放に失敗しました"})
			log.Printf("在庫解放エラー: product_id=%d, error=%v", id, err)
			return
		}

		s.bus.Publish(c.Request.Context(), event.TypeProductReleased, event.ProductReservedData{
			ProductID: id,
			Quantity:  req.Quantity,
		})

		c.JSON(http.StatusOK, gin.H{"product_id": id, "quantity": req.Quantity, "stock_quantity": remaining})
	}
}

// handleListCategories はカテゴリ一覧取得を処理するハンドラを返す。
func (s *Server) handleListCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := s.store.ListCategories(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カテゴリ一覧の取得に失敗しました"})
			log.Printf("カテゴリ一覧取得エラー: %v", err)
			return
		}

		responses := make([]categoryResponse, 0, len(categories))
		for _, cat := range categories {
			responses = append(responses, categoryResponse(cat))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCreateCategory はカテゴリ登録を処理するハンドラを返す。
func (s *Server) handleCreateCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		created, err := s.store.CreateCategory(c.Request.Context(), req.Name, req.Description)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カテゴリの登録に失敗しました"})
			log.Printf("カテゴリ登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, categoryResponse(created))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
