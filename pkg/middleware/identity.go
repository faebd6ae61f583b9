package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopgate/pkg/httpclient"
)

// Identity はリクエスト単位で解決された認証済みユーザー。
// gatewayは永続化せず、1リクエストの間だけコンテキストに保持する。
type Identity struct {
	// ID はユーザーの一意識別子。
	ID int64
	// Email はユーザーのメールアドレス。
	Email string
	// Profile はユーザーサービスが返したプロフィール全体。
	Profile map[string]any
}

// contextKeyIdentity はGinコンテキストに認証済みユーザーを格納するためのキー。
const contextKeyIdentity = "auth_identity"

// SetIdentity はGinコンテキストに認証済みユーザーを設定する。
func SetIdentity(c *gin.Context, ident Identity) {
	c.Set(contextKeyIdentity, ident)
}

// GetIdentity はGinコンテキストから認証済みユーザーを取得する。
// RemoteAuthまたはJWTAuthミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return Identity{}, false
	}
	ident, ok := v.(Identity)
	return ident, ok
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	return strings.CutPrefix(authHeader, "Bearer ")
}

// RemoteAuth はユーザーサービスに問い合わせてBearerトークンを検証する
// Ginミドルウェアを返す。トークンが有効な場合、解決されたユーザーを
// コンテキストに設定する。ヘルスチェックと管理系パスは検証を行わない。
//
// profileClientはユーザーサービスへのHTTPクライアント（10秒タイムアウト）。
func RemoteAuth(profileClient *httpclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || strings.HasPrefix(path, "/admin/") {
			c.Next()
			return
		}

		token, found := BearerToken(c)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		var profile map[string]any
		ctx := httpclient.WithToken(c.Request.Context(), token)
		if err := profileClient.GetJSON(ctx, "/api/user/profile/", &profile); err != nil {
			// トークン拒否と接続障害は同じ401を返すが、ログ上は区別する
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) {
				log.Printf("[Auth] トークンが拒否された: status=%d", statusErr.StatusCode)
			} else {
				log.Printf("[Auth] ユーザーサービスへの問い合わせに失敗: %v", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		ident, ok := identityFromProfile(profile)
		if !ok {
			log.Printf("[Auth] プロフィールにidまたはemailが含まれていない")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		SetIdentity(c, ident)
		c.Next()
	}
}

// identityFromProfile はプロフィールJSONから認証済みユーザーを組み立てる。
// idとemailが必須で、それ以外のフィールドはProfileにそのまま保持する。
func identityFromProfile(profile map[string]any) (Identity, bool) {
	idValue, ok := profile["id"].(float64)
	if !ok {
		return Identity{}, false
	}
	email, ok := profile["email"].(string)
	if !ok || email == "" {
		return Identity{}, false
	}
	return Identity{
		ID:      int64(idValue),
		Email:   email,
		Profile: profile,
	}, true
}
