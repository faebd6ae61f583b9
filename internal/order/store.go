package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Store は注文と注文明細の永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しい注文ストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateOrder は注文と注文明細を1トランザクションで保存する。
// すべて保存できた場合のみコミットし、途中で失敗した場合は何も残さない。
// 採番された注文IDを設定して返す。
func (s *Store) CreateOrder(ctx context.Context, o Order, items []Item) (Order, []Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, nil, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, status, total_amount, shipping_address, user_email, user_name)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.UserID, o.Status, o.TotalAmount.String(), o.ShippingAddress, o.UserEmail, o.UserName,
	)
	if err != nil {
		return Order{}, nil, fmt.Errorf("注文の保存に失敗: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return Order{}, nil, fmt.Errorf("採番された注文IDの取得に失敗: %w", err)
	}
	o.ID = orderID

	saved := make([]Item, 0, len(items))
	for _, item := range items {
		itemResult, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
			 VALUES (?, ?, ?, ?, ?)`,
			orderID, item.ProductID, item.ProductName, item.Quantity, item.Price.String(),
		)
		if err != nil {
			return Order{}, nil, fmt.Errorf("注文明細の保存に失敗: %w", err)
		}
		itemID, err := itemResult.LastInsertId()
		if err != nil {
			return Order{}, nil, fmt.Errorf("採番された明細IDの取得に失敗: %w", err)
		}
		item.ID = itemID
		item.OrderID = orderID
		saved = append(saved, item)
	}

	if err := tx.Commit(); err != nil {
		return Order{}, nil, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return o, saved, nil
}

// scanOrder は1行を読み取ってOrderに変換する。
func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	var totalText string
	var createdAt, updatedAt string
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &totalText, &o.ShippingAddress, &o.UserEmail, &o.UserName, &createdAt, &updatedAt); err != nil {
		return Order{}, err
	}

	total, err := decimal.NewFromString(totalText)
	if err != nil {
		return Order{}, fmt.Errorf("合計金額の解析に失敗: %w", err)
	}
	o.TotalAmount = total

	// SQLiteのdatetime('now')は "2006-01-02 15:04:05" 形式で保存される
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		o.CreatedAt = t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		o.UpdatedAt = t
	}
	return o, nil
}

// orderColumns はOrderの取得に使う共通のSELECT句。
const orderColumns = `id, user_id, status, total_amount, shipping_address, user_email, user_name, created_at, updated_at`

// ListOrders はユーザーの注文一覧を新しい順に返す。
func (s *Store) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetOrder はIDで注文と注文明細を取得する。
// 見つからない場合はsql.ErrNoRowsを返す。
func (s *Store) GetOrder(ctx context.Context, id int64) (Order, []Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price FROM order_items WHERE order_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return Order{}, nil, fmt.Errorf("注文明細の取得に失敗: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var priceText string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &priceText); err != nil {
			return Order{}, nil, err
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return Order{}, nil, fmt.Errorf("価格の解析に失敗: %w", err)
		}
		item.Price = price
		items = append(items, item)
	}
	return o, items, rows.Err()
}

// CountOrders は保存されている注文の総数を返す。テストの検証で使用する。
func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("注文数の取得に失敗: %w", err)
	}
	return count, nil
}

// UpdateStatus は注文ステータスを更新する。
// 注文が存在しない場合はsql.ErrNoRowsを返す。
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("ステータスの更新に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
