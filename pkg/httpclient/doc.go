// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// ユーザーサービスへのトークン検証、カート取得、商品の予約・解放など、
// サービス間の通信パターンを統一する。すべての呼び出しはタイムアウトで
// 制限されたブロッキング呼び出しであり、リトライは行わない。
package httpclient
