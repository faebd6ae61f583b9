package event

// イベント種別。"<entity>.<action>" の形式で命名する。
const (
	// TypeOrderCreated は注文が作成されたことを表す。
	TypeOrderCreated = "order.created"
	// TypeUserRegistered はユーザーが登録されたことを表す。
	TypeUserRegistered = "user.registered"
	// TypeProductReserved は商品在庫が予約されたことを表す。
	TypeProductReserved = "product.reserved"
	// TypeProductReleased は予約済み在庫が解放されたことを表す。
	TypeProductReleased = "product.released"
)

// OrderCreatedData はorder.createdイベントのデータ。
type OrderCreatedData struct {
	// OrderID は作成された注文のID。
	OrderID int64 `json:"order_id"`
	// UserID は注文したユーザーのID。
	UserID int64 `json:"user_id"`
	// TotalAmount は注文の合計金額（小数点以下2桁の文字列）。
	TotalAmount string `json:"total_amount"`
	// ItemCount は注文内の商品行数。
	ItemCount int `json:"item_count"`
}

// UserRegisteredData はuser.registeredイベントのデータ。
type UserRegisteredData struct {
	// UserID は登録されたユーザーのID。
	UserID int64 `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// ProductReservedData はproduct.reserved / product.releasedイベントのデータ。
type ProductReservedData struct {
	// ProductID は対象商品のID。
	ProductID int64 `json:"product_id"`
	// Quantity は予約または解放された数量。
	Quantity int `json:"quantity"`
}
