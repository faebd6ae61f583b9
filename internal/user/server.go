package user

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/event"
	"github.com/nao1215/shopgate/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はユーザーの永続化を担当する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// bus はイベント発行用のバス。
	bus event.Bus
	// jwtSecret はJWTトークンの署名鍵。
	jwtSecret string
}

// NewServer は新しいユーザーサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
// busにはイベントバスを注入する。本番ではRedis、テストではインメモリ実装を渡す。
func NewServer(port string, bus event.Bus) (*Server, error) {
	dbPath := getEnvOr("USER_DB_PATH", "/data/user.db")
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
		router:    router,
		port:      port,
		store:     NewStore(sqlDB),
		db:        sqlDB,
		bus:       bus,
		jwtSecret: getEnvOr("JWT_SECRET", "dev-secret-key"),
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
	// 認証不要のエンドポイント
	s.router.POST("/api/auth/register/", s.handleRegister())
	s.router.POST("/api/auth/login/", s.handleLogin())
	s.router.POST("/api/auth/refresh/", s.handleRefresh())

	// JWT認証が必要なエンドポイント
	authed := s.router.Group("/api/user")
	authed.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// プロフィール取得。他サービスのトークン検証からも呼び出される
		authed.GET("/profile/", s.handleProfile())
		// プロフィール更新
		authed.PUT("/profile/", s.handleUpdateProfile())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード（8文字以上）。
	Password string `json:"password" binding:"required,min=8"`
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// refreshRequest はトークン再発行リクエストのJSON構造。
type refreshRequest struct {
	// Refresh はリフレッシュトークン。
	Refresh string `json:"refresh" binding:"required"`
}

// updateProfileRequest はプロフィール更新リクエストのJSON構造。
type updateProfileRequest struct {
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
}

// userResponse はユーザーのJSONレスポンス構造。
// GET /api/user/profile/ の形式は他サービスのRemoteAuthが参照する契約であり、
// idとemailのフィールド名は変更しないこと。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID int64 `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// 登録に成功するとUserRegisteredイベントを発行する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		created, err := s.store.CreateUser(c.Request.Context(), req.Email, string(hash), req.FirstName, req.LastName)
		if errors.Is(err, ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "このメールアドレスは既に登録されています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		s.bus.Publish(c.Request.Context(), event.TypeUserRegistered, event.UserRegisteredData{
			UserID: created.ID,
			Email:  created.Email,
		})

		c.JSON(http.StatusCreated, toUserResponse(created))
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功するとアクセストークンとリフレッシュトークンのペアを返す。
// 未登録メールアドレスとパスワード不一致は同じ401を返し、登録状況を漏らさない。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		u, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}

		access, err := middleware.GenerateJWT(s.jwtSecret, u.ID, u.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("アクセストークン発行エラー: %v", err)
			return
		}
		refresh, err := middleware.GenerateRefreshJWT(s.jwtSecret, u.ID, u.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("リフレッシュトークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh})
	}
}

// handleRefresh はアクセストークンの再発行を処理するハンドラを返す。
// 有効なリフレッシュトークンからのみ再発行できる。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		claims, err := middleware.ParseJWT(s.jwtSecret, req.Refresh)
		if err != nil || claims.TokenType != middleware.TokenTypeRefresh {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		access, err := middleware.GenerateJWT(s.jwtSecret, claims.UserID, claims.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("アクセストークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"access": access})
	}
}

// handleProfile はプロフィール取得を処理するハンドラを返す。
func (s *Server) handleProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		u, err := s.store.GetUserByID(c.Request.Context(), ident.ID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの取得に失敗しました"})
			log.Printf("プロフィール取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// handleUpdateProfile はプロフィール更新を処理するハンドラを返す。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.store.UpdateProfile(c.Request.Context(), ident.ID, req.FirstName, req.LastName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの更新に失敗しました"})
			log.Printf("プロフィール更新エラー: %v", err)
			return
		}

		updated, err := s.store.GetUserByID(c.Request.Context(), ident.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後のプロフィールの取得に失敗しました"})
			log.Printf("プロフィール取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(updated))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
