package session

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore keeps sessions in process memory. With a positive capacity the
// least recently used chats are evicted once the bound is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]string
	cache    *lru.Cache[string, string]
}

type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	onEvict func(chatID string, stateID string)
}

// WithEvictCallback is invoked for every chat dropped by the LRU bound.
func WithEvictCallback(fn func(chatID string, stateID string)) MemoryOption {
	return func(o *memoryOptions) {
		o.onEvict = fn
	}
}

// NewMemoryStore creates a memory store. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int, opts ...MemoryOption) (*MemoryStore, error) {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}

	if capacity <= 0 {
		return &MemoryStore{sessions: make(map[string]string)}, nil
	}

	var (
		cache *lru.Cache[string, string]
		err   error
	)
	if o.onEvict != nil {
		cache, err = lru.NewWithEvict[string, string](capacity, o.onEvict)
	} else {
		cache, err = lru.New[string, string](capacity)
	}
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: cache}, nil
}

func (m *MemoryStore) Load(_ context.Context, chatID string) (string, error) {
	if m.cache != nil {
		stateID, ok := m.cache.Get(chatID)
		if !ok {
			return "", ErrNotFound
		}
		return stateID, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	stateID, ok := m.sessions[chatID]
	if !ok {
		return "", ErrNotFound
	}
	return stateID, nil
}

func (m *MemoryStore) Save(_ context.Context, chatID string, stateID string) error {
	if m.cache != nil {
		m.cache.Add(chatID, stateID)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = stateID
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID string) error {
	if m.cache != nil {
		m.cache.Remove(chatID)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	if m.cache != nil {
		return m.cache.Len(), nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}
