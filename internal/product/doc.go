// Package product は商品カタログサービスを提供する。
//
// カテゴリと商品の参照・登録に加えて、注文オーケストレーションから
// 呼び出される在庫の予約（reserve）と解放（release）を担当する。
// 在庫の予約は条件付きUPDATEで行い、在庫数が負になることはない。
package product
