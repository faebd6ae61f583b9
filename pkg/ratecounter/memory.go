package ratecounter

import (
	"context"
	"sync"
	"time"
)

// Memory はインメモリのカウンタストア。テストとRedisなしの単体起動で使用する。
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// memoryEntry はカウント値と有効期限のペア。
type memoryEntry struct {
	count     int
	expiresAt time.Time
}

// NewMemory は新しいインメモリカウンタストアを生成する。
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get はキーの現在のカウントを返す。期限切れのエントリは0を返す。
func (m *Memory) Get(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return 0, nil
	}
	return entry.count, nil
}

// Set はキーのカウントを設定し、有効期限をttl後にリセットする。
func (m *Memory) Set(_ context.Context, key string, count int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		count:     count,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
