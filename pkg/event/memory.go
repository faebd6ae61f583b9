package event

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory はインメモリのイベントバス。テストで発行されたイベントを検証する
// ために使用する。
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory は新しいインメモリイベントバスを生成する。
func NewMemory() *Memory {
	return &Memory{}
}

// Publish はイベントをメモリ上に記録する。
func (m *Memory) Publish(_ context.Context, eventType string, data any) {
	// ワイヤフォーマットと同じ経路を通すため、一度シリアライズする
	if _, err := json.Marshal(data); err != nil {
		log.Printf("[Event] イベントのシリアライズに失敗: type=%s, error=%v", eventType, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Events は記録されたイベントのコピーを返す。
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
