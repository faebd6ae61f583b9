// Package user はユーザー・認証サービスを提供する。
//
// ユーザー登録、ログイン（JWTアクセストークン・リフレッシュトークンの発行）、
// トークン再発行、プロフィールの取得・更新を担当する。
// GET /api/user/profile/ は他サービスのトークン検証（RemoteAuthミドルウェア）
// からも呼び出される認証の基盤エンドポイントである。
package user
