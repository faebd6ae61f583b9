// Package order は注文サービスを提供する。
//
// 注文作成はオーケストレーション処理として実装する。カートサービスから
// カート内容を取得し、商品サービスで在庫を順番に予約してから、注文と
// 注文明細を1トランザクションで永続化する。永続化に失敗した場合は
// 予約済み在庫をベストエフォートで解放する補償処理を行う。
// 注文確定後はorder.createdイベントを発行する。
package order
