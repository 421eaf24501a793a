package session

import "sync"

// Storage persists tab identities keyed by tab scope.
type Storage interface {
	// Load returns the identity stored under scope. ok is false when
	// nothing is stored.
	Load(scope string) (id string, ok bool, err error)
	Store(scope, id string) error
	// Remove deletes the identity stored under scope. Removing a missing
	// scope is not an error.
	Remove(scope string) error
}

// MemoryStorage keeps identities for the lifetime of the process.
type MemoryStorage struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{ids: make(map[string]string)}
}

// Ensure MemoryStorage implements Storage.
var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Load(scope string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[scope]
	return id, ok, nil
}

func (s *MemoryStorage) Store(scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[scope] = id
	return nil
}

func (s *MemoryStorage) Remove(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, scope)
	return nil
}
