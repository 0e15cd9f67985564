package store

import (
	"context"
	"sync"
)

// MemoryStore はマップベースのStore実装。
// DATABASE_URL未設定のデモモードとテストで使用する。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore はMemoryStoreの新しいインスタンスを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Load は指定キーのデータを返す。存在しない場合は(nil, nil)を返す。
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, nil
	}

	// 呼び出し側の変更から保護するためコピーを返す
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save は指定キーにデータを上書き保存する。
func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[key] = stored
	return nil
}
