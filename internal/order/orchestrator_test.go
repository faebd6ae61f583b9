package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/shopgate/pkg/event"
	"github.com/nao1215/shopgate/pkg/httpclient"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// productBackend は商品サービスのモック。在庫予約・解放の呼び出しを記録し、
// 指定した商品IDの呼び出しを失敗させられる。
type productBackend struct {
	mu           sync.Mutex
	reserveCalls []int64
	releaseCalls []int64
	failReserve  map[int64]bool
	failRelease  map[int64]bool
}

// handler は /api/products/{id}/reserve/ と /api/products/{id}/release/ を処理する。
func (b *productBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// api / products / {id} / reserve|release
		if len(parts) != 4 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		productID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch parts[3] {
		case "reserve":
			b.reserveCalls = append(b.reserveCalls, productID)
			if b.failReserve[productID] {
				w.WriteHeader(http.StatusConflict)
				fmt.Fprint(w, `{"error":"在庫が不足しています"}`)
				return
			}
			fmt.Fprintf(w, `{"product_id":%d}`, productID)
		case "release":
			b.releaseCalls = append(b.releaseCalls, productID)
			if b.failRelease[productID] {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"在庫の解放に失敗しました"}`)
				return
			}
			fmt.Fprintf(w, `{"product_id":%d}`, productID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// calls は記録された呼び出しのコピーを返す。
func (b *productBackend) calls() (reserve, release []int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.reserveCalls...), append([]int64(nil), b.releaseCalls...)
}

// threeItemCart は商品3点が入ったカートのレスポンスボディ。
const threeItemCart = `{
	"items": [
		{"product_id": 1, "product_name": "Go入門", "price": "10.00", "quantity": 2},
		{"product_id": 2, "product_name": "実践Go", "price": "5.50", "quantity": 1},
		{"product_id": 3, "product_name": "Goパターン", "price": "3.00", "quantity": 1}
	],
	"total": "28.50"
}`

// setupOrchestrator はテスト用のオーケストレータをインメモリSQLiteで構築する。
func setupOrchestrator(t *testing.T, cartHandler http.HandlerFunc, pb *productBackend) (*Orchestrator, *Store, *event.Memory) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに独立するため、接続数を1に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	cartService := httptest.NewServer(cartHandler)
	t.Cleanup(cartService.Close)

	productService := httptest.NewServer(pb.handler())
	t.Cleanup(productService.Close)

	store := NewStore(sqlDB)
	bus := event.NewMemory()
	orch := NewOrchestrator(httpclient.New(cartService.URL), httpclient.New(productService.URL), bus, store)
	return orch, store, bus
}

// cartWith は固定のカート内容を返すカートサービスのモックハンドラを返す。
// DELETEによるカートのクリアにも応答する。
func cartWith(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodDelete {
			fmt.Fprint(w, `{"message":"カートを空にしました"}`)
			return
		}
		fmt.Fprint(w, body)
	}
}

// TestPlaceOrder は注文オーケストレーションのテスト。
func TestPlaceOrder(t *testing.T) {
	t.Parallel()

	t.Run("カート内の全商品を予約して注文を保存する", func(t *testing.T) {
		t.Parallel()

		pb := &productBackend{}
		orch, store, bus := setupOrchestrator(t, cartWith(threeItemCart), pb)

		created, items, err := orch.PlaceOrder(context.Background(), 1, "taro@example.com", "山田 太郎", "test-token", "東京都千代田区1-1")
		if err != nil {
			t.Fatalf("注文作成に失敗: %v", err)
		}

		if created.ID == 0 {
			t.Error("注文IDが採番されていない")
		}
		if created.Status != StatusPending {
			t.Errorf("Status: got %q, want %q", created.Status, StatusPending)
		}
		// 10.00×2 + 5.50×1 + 3.00×1 = 28.50
		if !created.TotalAmount.Equal(decimal.RequireFromString("28.50")) {
			t.Errorf("TotalAmount: got %s, want 28.50", created.TotalAmount.String())
		}
		if len(items) != 3 {
			t.Fatalf("明細数: got %d, want 3", len(items))
		}
		if items[0].ProductName != "Go入門" {
			t.Errorf("商品名スナップショット: got %q, want %q", items[0].ProductName, "Go入門")
		}

		// カート順に全商品が予約されている
		reserve, release := pb.calls()
		if len(reserve) != 3 || reserve[0] != 1 || reserve[1] != 2 || reserve[2] != 3 {
			t.Errorf("予約呼び出し: got %v, want [1 2 3]", reserve)
		}
		if len(release) != 0 {
			t.Errorf("成功時に解放が呼ばれている: %v", release)
		}

		// 注文がDBに保存されている
		saved, savedItems, err := store.GetOrder(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("保存された注文の取得に失敗: %v", err)
		}
		if !saved.TotalAmount.Equal(created.TotalAmount) {
			t.Errorf("保存された合計金額: got %s, want %s", saved.TotalAmount.String(), created.TotalAmount.String())
		}
		if len(savedItems) != 3 {
			t.Errorf("保存された明細数: got %d, want 3", len(savedItems))
		}

		// order.createdイベントが発行されている
		events := bus.Events()
		if len(events) != 1 {
			t.Fatalf("イベント数: got %d, want 1", len(events))
		}
		if events[0].Type != event.TypeOrderCreated {
			t.Errorf("イベント種別: got %q, want %q", events[0].Type, event.TypeOrderCreated)
		}
		data, ok := events[0].Data.(event.OrderCreatedData)
		if !ok {
			t.Fatalf("イベントデータの型が不正: %T", events[0].Data)
		}
		if data.OrderID != created.ID || data.TotalAmount != "28.50" || data.ItemCount != 3 {
			t.Errorf("イベントデータ: got %+v", data)
		}
	})

	t.Run("カート取得に失敗した場合は予約を呼ばず注文も残さない", func(t *testing.T) {
		t.Parallel()

		pb := &productBackend{}
		cartHandler := func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}
		orch, store, bus := setupOrchestrator(t, cartHandler, pb)

		_, _, err := orch.PlaceOrder(context.Background(), 1, "taro@example.com", "山田 太郎", "test-token", "東京都千代田区1-1")
		if err == nil {
			t.Fatal("エラーが返されない")
		}
		if !isCartUnavailable(err) {
			t.Errorf("エラー種別: got %v, want ErrCartUnavailable", err)
		}

		reserve, _ := pb.calls()
		if len(reserve) != 0 {
			t.Errorf("予約が呼ばれている: %v", reserve)
		}

		count, err := store.CountOrders(context.Background())
		if err != nil {
			t.Fatalf("注文数の取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("注文が保存されている: count=%d", count)
		}
		if len(bus.Events()) != 0 {
			t.Errorf("イベントが発行されている: %+v", bus.Events())
		}
	})

	t.Run("空のカートでは注文できない", func(t *testing.T) {
		t.Parallel()

		pb := &productBackend{}
		orch, _, _ := setupOrchestrator(t, cartWith(`{"items": [], "total": "0.00"}`), pb)

		_, _, err := orch.PlaceOrder(context.Background(), 1, "taro@example.com", "山田 太郎", "test-token", "東京都千代田区1-1")
		if !isEmptyCart(err) {
			t.Errorf("エラー種別: got %v, want ErrEmptyCart", err)
		}

		reserve, _ := pb.calls()
		if len(reserve) != 0 {
			t.Errorf("予約が呼ばれている: %v", reserve)
		}
	})

	t.Run("2番目の予約が失敗すると3番目は呼ばれず注文も残さない", func(t *testing.T) {
		t.Parallel()

		pb := &productBackend{failReserve: map[int64]bool{2: true}}
		orch, store, bus := setupOrchestrator(t, cartWith(threeItemCart), pb)

		_, _, err := orch.PlaceOrder(context.Background(), 1, "taro@example.com", "山田 太郎", "test-token", "東京都千代田区1-1")
		if !isReservationFailed(err) {
			t.Errorf("エラー種別: got %v, want ErrReservationFailed", err)
		}

		// 1番目と2番目までで停止し、3番目の予約は呼ばれない
		reserve, release := pb.calls()
		if len(reserve) != 2 || reserve[0] != 1 || reserve[1] != 2 {
			t.Errorf("予約呼び出し: got %v, want [1 2]", reserve)
		}
		// 予約失敗時は先に成功した予約を解放しない（既知の制約）
		if len(release) != 0 {
			t.Errorf("解放が呼ばれている: %v", release)
		}

		count, err := store.CountOrders(context.Background())
		if err != nil {
			t.Fatalf("注文数の取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("注文が保存されている: count=%d", count)
		}
		if len(bus.Events()) != 0 {
			t.Errorf("イベントが発行されている: %+v", bus.Events())
		}
	})
}

// TestPlaceOrderCompensation は永続化失敗時の補償処理のテスト。
func TestPlaceOrderCompensation(t *testing.T) {
	t.Parallel()

	t.Run("保存に失敗した場合は予約済み在庫をすべて解放する", func(t *testing.T) {
		t.Parallel()

		sqlDB, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("インメモリDBの作成に失敗: %v", err)
		}
		sqlDB.SetMaxOpenConns(1)

		if err := initSchema(sqlDB); err != nil {
			t.Fatalf("スキーマ初期化に失敗: %v", err)
		}

		pb := &productBackend{}
		cartService := httptest.NewServer(cartWith(threeItemCart))
		t.Cleanup(cartService.Close)
		productService := httptest.NewServer(pb.handler())
		t.Cleanup(productService.Close)

		bus := event.NewMemory()
		orch := NewOrchestrator(httpclient.New(cartService.URL), httpclient.New(productService.URL), bus, NewStore(sqlDB))

		// DBを閉じて注文の保存を失敗させる
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("DBのクローズに失敗: %v", err)
		}

		_, _, err = orch.PlaceOrder(context.Background(), 1, "taro@example.com", "山田 太郎", "test-token", "東京都千代田区1-1")
		if err == nil {
			t.Fatal("エラーが返されない")
		}

		// 予約された全商品が解放されている
		reserve, release := pb.calls()
		if len(reserve) != 3 {
			t.Fatalf("予約呼び出し数: got %d, want 3", len(reserve))
		}
		if len(release) != 3 || release[0] != 1 || release[1] != 2 || release[2] != 3 {
			t.Errorf("解放呼び出し: got %v, want [1 2 3]", release)
		}

		if len(bus.Events()) != 0 {
			t.Errorf("失敗時にイベントが発行されている: %+v", bus.Events())
		}
	})
}

// TestReleaseItems は補償処理のテスト。
func TestReleaseItems(t *testing.T) {
	t.Parallel()

	t.Run("最初の解放が失敗しても残りの解放を継続する", func(t *testing.T) {
		t.Parallel()

		pb := &productBackend{failRelease: map[int64]bool{1: true}}
		orch, _, _ := setupOrchestrator(t, cartWith(threeItemCart), pb)

		items := []Item{
			{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5.50")},
			{ProductID: 3, Quantity: 1, Price: decimal.RequireFromString("3.00")},
		}
		orch.ReleaseItems(context.Background(), items)

		_, release := pb.calls()
		if len(release) != 3 || release[0] != 1 || release[1] != 2 || release[2] != 3 {
			t.Errorf("解放呼び出し: got %v, want [1 2 3]", release)
		}
	})
}

// isCartUnavailable はエラーがErrCartUnavailable由来かどうかを返す。
func isCartUnavailable(err error) bool { return errors.Is(err, ErrCartUnavailable) }

// isEmptyCart はエラーがErrEmptyCart由来かどうかを返す。
func isEmptyCart(err error) bool { return errors.Is(err, ErrEmptyCart) }

// isReservationFailed はエラーがErrReservationFailed由来かどうかを返す。
func isReservationFailed(err error) bool { return errors.Is(err, ErrReservationFailed) }
