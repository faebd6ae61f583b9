package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文ステータス。
const (
	// StatusPending は支払い待ちの初期状態。
	StatusPending = "pending"
	// StatusConfirmed は注文確定。
	StatusConfirmed = "confirmed"
	// StatusShipped は発送済み。
	StatusShipped = "shipped"
	// StatusDelivered は配達完了。
	StatusDelivered = "delivered"
	// StatusCancelled はキャンセル済み。
	StatusCancelled = "cancelled"
)

// validStatuses はステータス更新で受け付ける値の集合。
var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// isValidStatus はステータス値が定義済みかどうかを返す。
func isValidStatus(status string) bool {
	return validStatuses[status]
}

// Order はordersテーブルの1行。
type Order struct {
	// ID は注文の一意識別子。
	ID int64
	// UserID は注文したユーザーのID。
	UserID int64
	// Status は注文ステータス。
	Status string
	// TotalAmount は合計金額。
	TotalAmount decimal.Decimal
	// ShippingAddress は配送先住所。
	ShippingAddress string
	// UserEmail は注文時点のユーザーのメールアドレスキャッシュ。
	UserEmail string
	// UserName は注文時点のユーザー氏名キャッシュ。
	UserName string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Item はorder_itemsテーブルの1行。商品名と価格は注文時点のスナップショット。
type Item struct {
	// ID は注文明細の一意識別子。
	ID int64
	// OrderID は所属する注文のID。
	OrderID int64
	// ProductID は商品ID。
	ProductID int64
	// ProductName は注文時点の商品名スナップショット。
	ProductName string
	// Quantity は数量。
	Quantity int
	// Price は注文時点の価格スナップショット。
	Price decimal.Decimal
}

// Subtotal は明細の小計（価格×数量）を返す。
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// calculateTotal は明細の小計の総和として合計金額を計算する。
// 浮動小数点数は使わず、10進演算で丸め誤差を避ける。
func calculateTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
