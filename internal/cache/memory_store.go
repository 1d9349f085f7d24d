package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 把条目保存在进程内，用于测试或不需要落盘的场景。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore 创建空的内存缓存。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	entry.Body = append([]byte(nil), entry.Body...)
	return &entry, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = s.now().UTC()
	}
	entry := Entry{
		Key:     key,
		Body:    append([]byte(nil), body...),
		ModTime: modTime,
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return &entry, nil
}
