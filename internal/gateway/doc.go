// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、パス接頭辞に基づいて
// リクエストを各バックエンドサービス（user/product/cart/order）に
// 転送する。レート制限はgatewayで実施し、認証は各バックエンドが
// ユーザーサービスへの問い合わせで行う。
package gateway
