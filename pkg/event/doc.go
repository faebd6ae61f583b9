// Package event はRedisの共有チャンネルへのイベント発行を提供する。
//
// 各サービスは状態変更をイベントとして "events" チャンネルに発行する。
// イベントはat-most-once配信のブロードキャストであり、発行の失敗は
// ログに記録するだけでHTTP呼び出し元には伝播しない（fire-and-forget）。
package event
