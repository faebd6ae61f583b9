package gateway

import "strings"

// バックエンドサービス名。
const (
	// ServiceUser はユーザー・認証サービス。
	ServiceUser = "user-service"
	// ServiceProduct は商品カタログサービス。
	ServiceProduct = "product-service"
	// ServiceCart はカートサービス。
	ServiceCart = "cart-service"
	// ServiceOrder は注文サービス。
	ServiceOrder = "order-service"
)

// route はパス接頭辞と転送先サービス名の対応。
type route struct {
	prefix  string
	service string
}

// routes は定義順に評価され、最初に一致した接頭辞が勝つ。
var routes = []route{
	{prefix: "/api/auth/", service: ServiceUser},
	{prefix: "/api/users/", service: ServiceUser},
	{prefix: "/api/products/", service: ServiceProduct},
	{prefix: "/api/categories/", service: ServiceProduct},
	{prefix: "/api/cart/", service: ServiceCart},
	{prefix: "/api/orders/", service: ServiceOrder},
}

// resolve はリクエストパスから転送先サービス名を決定する。
// どの接頭辞にも一致しない場合はfalseを返す。
// 転送先パスは書き換えず、元のリクエストパスをそのまま使用する。
func resolve(path string) (string, bool) {
	for _, r := range routes {
		if strings.HasPrefix(path, r.prefix) {
			return r.service, true
		}
	}
	return "", false
}
