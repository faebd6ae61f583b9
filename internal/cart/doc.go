// Package cart はカートサービスを提供する。
//
// 認証はユーザーサービスへの問い合わせ（RemoteAuth）で行い、
// カートの内容はユーザーIDをキーにSQLiteへ保存する。
// 商品をカートに入れた時点の商品名と価格をスナップショットとして保持し、
// GET /api/cart/ のレスポンス形式は注文オーケストレーションが参照する
// 契約である。
package cart
