package platform

import "sync"

// Store holds metadata attached to a provider
type Store struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewStore creates an empty metadata store
func NewStore() *Store {
	return &Store{
		values: make(map[string]interface{}),
	}
}

// Set stores a metadata value
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get retrieves a metadata value
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.values[key]
	return value, exists
}

// Delete removes a metadata value
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// StoreValue returns the value stored under key, or fallback when the key is
// missing or holds a value of another type.
func StoreValue[T any](s *Store, key string, fallback T) T {
	if s == nil {
		return fallback
	}
	value, exists := s.Get(key)
	if !exists {
		return fallback
	}
	typed, ok := value.(T)
	if !ok {
		return fallback
	}
	return typed
}
