package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// forwardedRequestHeaders は転送時にコピーするリクエストヘッダーの
// 許可リスト。これ以外の受信ヘッダーは内部のルーティング情報を
// 漏らさないよう意図的に落とす。
var forwardedRequestHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
}

// forwardedResponseHeaders は呼び出し元にコピーするレスポンスヘッダーの
// 許可リスト。
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
}

// handleProxy はパス接頭辞から転送先を決定してプロキシするハンドラを返す。
func (s *Server) handleProxy() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		service, ok := resolve(path)
		if !ok {
			log.Printf("[Proxy] 転送先サービスが見つからない: path=%s", path)
			c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
			return
		}

		baseURL := s.serviceURLs[service]
		if baseURL == "" {
			log.Printf("[Proxy] サービスのURLが設定されていない: service=%s", service)
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Service %s not configured", service)})
			return
		}

		s.forward(c, baseURL+path)
	}
}

// forward はリクエストをバックエンドサービスに転送し、レスポンスを
// 呼び出し元に中継する。ステータスコードとボディはそのまま返し、
// ヘッダーは許可リストのものだけをコピーする。
func (s *Server) forward(c *gin.Context, targetURL string) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[Proxy] リクエストボディの読み取りに失敗: url=%s, error=%v", targetURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// JSONボディは一度パースして正規化した形で転送する。
	// パースに失敗した場合はエラーにせず、生のバイト列のまま転送する。
	if contentType := c.GetHeader("Content-Type"); strings.Contains(contentType, "application/json") && len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil {
			log.Printf("[Proxy] JSONボディの解析に失敗（生のまま転送する）: url=%s, error=%v", targetURL, err)
		} else if normalized, err := json.Marshal(parsed); err == nil {
			body = normalized
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[Proxy] リクエストの作成に失敗: url=%s, error=%v", targetURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// クエリパラメータはそのまま転送する
	if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
		req.URL.RawQuery = rawQuery
	}

	for _, name := range forwardedRequestHeaders {
		if value := c.GetHeader(name); value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.writeProxyError(c, targetURL, err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Proxy] レスポンスの読み取りに失敗: url=%s, error=%v", targetURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	for _, name := range forwardedResponseHeaders {
		if value := resp.Header.Get(name); value != "" {
			c.Header(name, value)
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, respBody)
}

// writeProxyError は転送エラーをHTTPレスポンスに変換する。
// タイムアウトは504、接続障害は503、それ以外は500を返す。
func (s *Server) writeProxyError(c *gin.Context, targetURL string, err error) {
	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr) && urlErr.Timeout():
		log.Printf("[Proxy] タイムアウト: url=%s", targetURL)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Service timeout"})
	case errors.As(err, &urlErr):
		log.Printf("[Proxy] 接続エラー: url=%s, error=%v", targetURL, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
	default:
		log.Printf("[Proxy] 転送エラー: url=%s, error=%v", targetURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
