package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Item はcart_itemsテーブルの1行。
type Item struct {
	// UserID はカートの持ち主のユーザーID。
	UserID int64
	// ProductID は商品ID。
	ProductID int64
	// ProductName はカート追加時点の商品名スナップショット。
	ProductName string
	// Price はカート追加時点の価格スナップショット。
	Price decimal.Decimal
	// Quantity は数量。
	Quantity int
}

// Store はカートの永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいカートストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListItems はユーザーのカート内容を追加順に返す。
func (s *Store) ListItems(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, product_id, product_name, price, quantity FROM cart_items WHERE user_id = ? ORDER BY added_at, product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("カート内容の取得に失敗: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var priceText string
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.ProductName, &priceText, &item.Quantity); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return nil, fmt.Errorf("価格の解析に失敗: %w", err)
		}
		item.Price = price
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertItem は商品をカートに追加する。
// 既に同じ商品がカートにある場合は数量を加算し、スナップショットを
// 最新の商品名・価格で更新する。
func (s *Store) UpsertItem(ctx context.Context, item Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, product_name, price, quantity) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, product_id) DO UPDATE SET
		     quantity = quantity + excluded.quantity,
		     product_name = excluded.product_name,
		     price = excluded.price`,
		item.UserID, item.ProductID, item.ProductName, item.Price.String(), item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("カートへの追加に失敗: %w", err)
	}
	return nil
}

// RemoveItem はカートから商品を取り除く。
// 取り除いた場合はtrueを返す。
func (s *Store) RemoveItem(ctx context.Context, userID, productID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, productID,
	)
	if err != nil {
		return false, fmt.Errorf("カートからの削除に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除行数の取得に失敗: %w", err)
	}
	return affected > 0, nil
}

// Clear はユーザーのカートを空にする。
func (s *Store) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("カートのクリアに失敗: %w", err)
	}
	return nil
}
