// Package ratecounter はレート制限用の固定ウィンドウカウンタストアを提供する。
//
// 本番環境ではRedisをバックエンドとして全gatewayインスタンスでカウンタを
// 共有する。テストや単体起動ではインメモリ実装を使用できる。
package ratecounter
