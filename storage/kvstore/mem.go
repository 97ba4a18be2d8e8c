package kvstore

import (
	"encoding/json"
	"sync"
)

// MemStore is a map-backed Store for tests and throwaway environments.
// Values round-trip through JSON so stored state behaves exactly like the
// durable backends (no shared pointers, same (de)serialization quirks).
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) Load(key string, dst interface{}) error {
	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(data, dst)
}

func (s *MemStore) Save(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
