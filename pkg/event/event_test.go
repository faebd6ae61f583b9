package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// TestEventSerialize はイベントのワイヤフォーマットのテスト。
func TestEventSerialize(t *testing.T) {
	t.Parallel()

	t.Run("type・data・timestampを含むJSONにシリアライズされる", func(t *testing.T) {
		t.Parallel()

		e := Event{
			Type: TypeOrderCreated,
			Data: OrderCreatedData{
				OrderID:     42,
				UserID:      7,
				TotalAmount: "25.50",
				ItemCount:   2,
			},
			Timestamp: "2025-01-02T03:04:05Z",
		}

		payload, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("シリアライズに失敗: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("デシリアライズに失敗: %v", err)
		}
		if decoded["type"] != "order.created" {
			t.Errorf("type: got %q, want %q", decoded["type"], "order.created")
		}
		if decoded["timestamp"] != "2025-01-02T03:04:05Z" {
			t.Errorf("timestamp: got %q, want %q", decoded["timestamp"], "2025-01-02T03:04:05Z")
		}

		data, ok := decoded["data"].(map[string]any)
		if !ok {
			t.Fatalf("dataがオブジェクトでない: %T", decoded["data"])
		}
		if data["total_amount"] != "25.50" {
			t.Errorf("total_amount: got %q, want %q", data["total_amount"], "25.50")
		}
	})
}

// TestMemoryBus はインメモリイベントバスのテスト。
func TestMemoryBus(t *testing.T) {
	t.Parallel()

	t.Run("発行されたイベントが記録される", func(t *testing.T) {
		t.Parallel()

		bus := NewMemory()
		bus.Publish(context.Background(), TypeUserRegistered, UserRegisteredData{
			UserID: 1,
			Email:  "test@example.com",
		})

		events := bus.Events()
		if len(events) != 1 {
			t.Fatalf("イベント数: got %d, want 1", len(events))
		}
		if events[0].Type != TypeUserRegistered {
			t.Errorf("type: got %q, want %q", events[0].Type, TypeUserRegistered)
		}
		if events[0].ID == "" {
			t.Error("イベントIDが採番されていない")
		}
		if _, err := time.Parse(time.RFC3339, events[0].Timestamp); err != nil {
			t.Errorf("timestampがRFC3339形式でない: %q", events[0].Timestamp)
		}
	})

	t.Run("シリアライズ不能なデータは記録されない", func(t *testing.T) {
		t.Parallel()

		bus := NewMemory()
		bus.Publish(context.Background(), TypeOrderCreated, map[string]any{
			"bad": func() {}, // JSONにできない値
		})

		if len(bus.Events()) != 0 {
			t.Errorf("イベント数: got %d, want 0", len(bus.Events()))
		}
	})
}
