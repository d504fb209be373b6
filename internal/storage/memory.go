package storage

import (
	"context"
	"sync"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps documents in process memory. Nothing survives a restart;
// used in tests and for throwaway dev runs.
type MemoryStorage struct {
	docs  map[string][]byte
	mutex sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docs: make(map[string][]byte),
	}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.docs[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
