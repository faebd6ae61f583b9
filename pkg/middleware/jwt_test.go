package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// newJWTAuthRouter はJWTAuthミドルウェアを適用したテスト用ルーターを生成する。
func newJWTAuthRouter(secret string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(secret))
	router.GET("/api/user/profile/", func(c *gin.Context) {
		ident, _ := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"id": ident.ID, "email": ident.Email})
	})
	return router
}

// TestGenerateJWTAndJWTAuth はトークン生成とローカル検証の一連のフローのテスト。
func TestGenerateJWTAndJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("生成したトークンで認証できユーザーが解決される", func(t *testing.T) {
		t.Parallel()

		token, err := GenerateJWT(testJWTSecret, 123, "user@example.com")
		if err != nil {
			t.Fatalf("JWT生成に失敗: %v", err)
		}

		router := newJWTAuthRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result["id"] != float64(123) {
			t.Errorf("id: got %v, want 123", result["id"])
		}
		if result["email"] != "user@example.com" {
			t.Errorf("email: got %v, want %q", result["email"], "user@example.com")
		}
	})

	t.Run("異なるsecretで署名されたトークンは拒否される", func(t *testing.T) {
		t.Parallel()

		token, err := GenerateJWT("wrong-secret", 123, "user@example.com")
		if err != nil {
			t.Fatalf("JWT生成に失敗: %v", err)
		}

		router := newJWTAuthRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Authorizationヘッダーが無い場合は401を返す", func(t *testing.T) {
		t.Parallel()

		router := newJWTAuthRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile/", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Bearer接頭辞なしのトークンは拒否される", func(t *testing.T) {
		t.Parallel()

		token, err := GenerateJWT(testJWTSecret, 1, "user@example.com")
		if err != nil {
			t.Fatalf("JWT生成に失敗: %v", err)
		}

		router := newJWTAuthRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile/", nil)
		req.Header.Set("Authorization", token) // Bearer接頭辞なし
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("壊れたトークンは拒否される", func(t *testing.T) {
		t.Parallel()

		router := newJWTAuthRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestParseJWT はParseJWT関数のテスト。
func TestParseJWT(t *testing.T) {
	t.Parallel()

	t.Run("クレームが正しく復元される", func(t *testing.T) {
		t.Parallel()

		token, err := GenerateJWT(testJWTSecret, 99, "claims@example.com")
		if err != nil {
			t.Fatalf("JWT生成に失敗: %v", err)
		}

		claims, err := ParseJWT(testJWTSecret, token)
		if err != nil {
			t.Fatalf("ParseJWTに失敗: %v", err)
		}
		if claims.UserID != 99 {
			t.Errorf("UserID: got %d, want 99", claims.UserID)
		}
		if claims.Email != "claims@example.com" {
			t.Errorf("Email: got %q, want %q", claims.Email, "claims@example.com")
		}
	})
}
