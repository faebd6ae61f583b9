// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// レート制限、JWT認証トークンの検証、ユーザーサービスへの問い合わせによる
// リモート認証、パニックリカバリ、CORS設定など、gatewayと各バックエンド
// サービスで共通して使用するミドルウェアを含む。
package middleware
