package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// トークン種別。アクセストークンはAPI認証に、リフレッシュトークンは
// アクセストークンの再発行にのみ使用する。
const (
	// TokenTypeAccess はAPI認証用のアクセストークン。
	TokenTypeAccess = "access"
	// TokenTypeRefresh は再発行専用のリフレッシュトークン。
	TokenTypeRefresh = "refresh"
)

// accessTokenTTL はアクセストークンの有効期間。
const accessTokenTTL = 24 * time.Hour

// refreshTokenTTL はリフレッシュトークンの有効期間。
const refreshTokenTTL = 7 * 24 * time.Hour

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID int64 `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// TokenType はトークン種別（access / refresh）。
	TokenType string `json:"token_type"`
}

// GenerateJWT はユーザー情報からアクセストークンを生成する。
// ユーザーサービスがログイン成功後に呼び出す。有効期限は24時間。
func GenerateJWT(secret string, userID int64, email string) (string, error) {
	return generateToken(secret, userID, email, TokenTypeAccess, accessTokenTTL)
}

// GenerateRefreshJWT はリフレッシュトークンを生成する。有効期限は7日間。
func GenerateRefreshJWT(secret string, userID int64, email string) (string, error) {
	return generateToken(secret, userID, email, TokenTypeRefresh, refreshTokenTTL)
}

// generateToken は指定された種別と有効期間でJWTトークンを生成する。
func generateToken(secret string, userID int64, email, tokenType string, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "shopgate-user",
		},
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証してクレームを返す。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("JWTトークンが無効")
	}
	return claims, nil
}

// JWTAuth はJWTトークンをローカルで検証するGinミドルウェアを返す。
// トークンを発行したユーザーサービス自身が使用する。検証に成功した場合、
// 解決されたユーザーをコンテキストに設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := BearerToken(c)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		// リフレッシュトークンでのAPI認証は認めない
		if claims.TokenType == TokenTypeRefresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		SetIdentity(c, Identity{ID: claims.UserID, Email: claims.Email})
		c.Next()
	}
}
