package product

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    -- カテゴリの一意識別子
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- カテゴリ名
    name TEXT NOT NULL UNIQUE,
    -- カテゴリの説明
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
    -- 商品の一意識別子
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- 所属カテゴリのID
    category_id INTEGER REFERENCES categories(id),
    -- 商品名
    name TEXT NOT NULL,
    -- 商品の説明
    description TEXT NOT NULL DEFAULT '',
    -- 価格。丸め誤差を避けるため10進文字列で保持する
    price TEXT NOT NULL,
    -- 在庫数。0以上であることを条件付きUPDATEで保証する
    stock_quantity INTEGER NOT NULL DEFAULT 0,
    -- 販売中フラグ
    is_active INTEGER NOT NULL DEFAULT 1,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 更新日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- カテゴリでの絞り込みを高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_products_category_id
    ON products(category_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
