package cart

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS cart_items (
    -- カートの持ち主のユーザーID
    user_id INTEGER NOT NULL,
    -- 商品ID
    product_id INTEGER NOT NULL,
    -- カート追加時点の商品名スナップショット
    product_name TEXT NOT NULL,
    -- カート追加時点の価格スナップショット（10進文字列）
    price TEXT NOT NULL,
    -- 数量
    quantity INTEGER NOT NULL,
    -- 追加日時
    added_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, product_id)
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
