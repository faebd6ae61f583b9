package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nao1215/shopgate/pkg/event"
	"github.com/nao1215/shopgate/pkg/httpclient"
	"github.com/shopspring/decimal"
)

// ErrCartUnavailable はカートサービスからカート内容を取得できなかったことを表す。
var ErrCartUnavailable = errors.New("カートサービスに接続できない")

// ErrEmptyCart はカートが空のまま注文しようとしたことを表す。
var ErrEmptyCart = errors.New("カートが空")

// ErrReservationFailed は在庫の予約に失敗したことを表す。
var ErrReservationFailed = errors.New("在庫の予約に失敗")

// cartItemPayload はカートサービスが返すカート内商品のJSON構造。
type cartItemPayload struct {
	// ProductID は商品ID。
	ProductID int64 `json:"product_id"`
	// ProductName はカート追加時点の商品名スナップショット。
	ProductName string `json:"product_name"`
	// Price はカート追加時点の価格スナップショット（10進文字列）。
	Price string `json:"price"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
}

// cartPayload はカートサービスが返すカート全体のJSON構造。
type cartPayload struct {
	// Items はカート内の商品一覧。
	Items []cartItemPayload `json:"items"`
	// Total はカートの合計金額。
	Total string `json:"total"`
}

// Orchestrator は注文作成のオーケストレーション処理を実行する。
// カート取得、在庫予約、永続化、イベント発行を厳密にこの順序で、
// 並列化せずに実行する。
type Orchestrator struct {
	// cartClient はカートサービスへのHTTPクライアント。
	cartClient *httpclient.Client
	// productClient は商品サービスへのHTTPクライアント。
	productClient *httpclient.Client
	// bus はイベント発行用のバス。
	bus event.Bus
	// store は注文の永続化を担当する。
	store *Store
}

// NewOrchestrator は新しい注文オーケストレータを生成する。
func NewOrchestrator(cartClient, productClient *httpclient.Client, bus event.Bus, store *Store) *Orchestrator {
	return &Orchestrator{
		cartClient:    cartClient,
		productClient: productClient,
		bus:           bus,
		store:         store,
	}
}

// PlaceOrder は注文作成のオーケストレーションを実行する。
//
//  1. カートサービスから認証済みユーザーのカート内容を取得する。
//     失敗した場合は副作用なしで中断する。
//  2. カート内の商品を順番に在庫予約する。最初の失敗で即座に中断する。
//     このとき先に予約済みの在庫は解放しない（注文のリトライで再利用される
//     想定の既知の制約）。
//  3. 注文と明細を1トランザクションで保存する。保存に失敗した場合は
//     予約済み在庫をベストエフォートで解放する。
//  4. order.createdイベントを発行し、カートを空にする。どちらも
//     ベストエフォートであり、失敗しても注文は成立する。
//
// tokenは呼び出し元のBearerトークンで、カートサービスへの代理呼び出しに使う。
func (o *Orchestrator) PlaceOrder(ctx context.Context, userID int64, userEmail, userName, token, shippingAddress string) (Order, []Item, error) {
	ctx = httpclient.WithToken(ctx, token)

	items, err := o.fetchCart(ctx)
	if err != nil {
		return Order{}, nil, err
	}

	if err := o.reserveItems(ctx, items); err != nil {
		return Order{}, nil, err
	}

	created, savedItems, err := o.store.CreateOrder(ctx, Order{
		UserID:          userID,
		Status:          StatusPending,
		TotalAmount:     calculateTotal(items),
		ShippingAddress: shippingAddress,
		UserEmail:       userEmail,
		UserName:        userName,
	}, items)
	if err != nil {
		// 補償処理: 予約済み在庫を解放する
		o.ReleaseItems(ctx, items)
		return Order{}, nil, fmt.Errorf("注文の保存に失敗: %w", err)
	}

	o.bus.Publish(ctx, event.TypeOrderCreated, event.OrderCreatedData{
		OrderID:     created.ID,
		UserID:      created.UserID,
		TotalAmount: created.TotalAmount.StringFixed(2),
		ItemCount:   len(savedItems),
	})

	o.clearCart(ctx)

	return created, savedItems, nil
}

// fetchCart はカートサービスからカート内容を取得して注文明細に変換する。
func (o *Orchestrator) fetchCart(ctx context.Context) ([]Item, error) {
	var cart cartPayload
	if err := o.cartClient.GetJSON(ctx, "/api/cart/", &cart); err != nil {
		log.Printf("[Order] カート内容の取得に失敗: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}

	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]Item, 0, len(cart.Items))
	for _, ci := range cart.Items {
		price, err := decimal.NewFromString(ci.Price)
		if err != nil {
			log.Printf("[Order] カート内商品の価格の解析に失敗: product_id=%d, price=%q", ci.ProductID, ci.Price)
			return nil, fmt.Errorf("%w: 価格の解析に失敗: %v", ErrCartUnavailable, err)
		}
		items = append(items, Item{
			ProductID:   ci.ProductID,
			ProductName: ci.ProductName,
			Quantity:    ci.Quantity,
			Price:       price,
		})
	}
	return items, nil
}

// reserveItems は商品をカート順に1つずつ在庫予約する。
// 最初の失敗で即座に中断し、先に成功した予約はここでは解放しない。
func (o *Orchestrator) reserveItems(ctx context.Context, items []Item) error {
	for _, item := range items {
		path := fmt.Sprintf("/api/products/%d/reserve/", item.ProductID)
		if err := o.productClient.PostJSON(ctx, path, map[string]int{"quantity": item.Quantity}, nil); err != nil {
			log.Printf("[Order] 在庫予約に失敗: product_id=%d, quantity=%d, error=%v", item.ProductID, item.Quantity, err)
			return fmt.Errorf("%w: product_id=%d: %v", ErrReservationFailed, item.ProductID, err)
		}
		log.Printf("[Order] 在庫を予約: product_id=%d, quantity=%d", item.ProductID, item.Quantity)
	}
	return nil
}

// ReleaseItems は予約済み在庫をベストエフォートで解放する補償処理。
// 個々の失敗はログに記録し、残りの商品の解放は継続する。
func (o *Orchestrator) ReleaseItems(ctx context.Context, items []Item) {
	for _, item := range items {
		path := fmt.Sprintf("/api/products/%d/release/", item.ProductID)
		if err := o.productClient.PostJSON(ctx, path, map[string]int{"quantity": item.Quantity}, nil); err != nil {
			log.Printf("[Order] 在庫解放に失敗: product_id=%d, quantity=%d, error=%v", item.ProductID, item.Quantity, err)
			continue
		}
		log.Printf("[Order] 在庫を解放: product_id=%d, quantity=%d", item.ProductID, item.Quantity)
	}
}

// clearCart は注文成立後にカートをベストエフォートで空にする。
func (o *Orchestrator) clearCart(ctx context.Context) {
	if err := o.cartClient.DeleteJSON(ctx, "/api/cart/"); err != nil {
		log.Printf("[Order] カートのクリアに失敗: %v", err)
	}
}
