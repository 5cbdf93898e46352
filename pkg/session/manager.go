package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager tracks the current flow state of every chat on top of a Store and
// serializes work per chat. Lock entries are reference counted so chats that
// go quiet do not leave mutexes behind.
type Manager struct {
	store Store
	entry string

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewManager creates a Manager whose unseen chats resolve to entryStateID.
func NewManager(store Store, entryStateID string) *Manager {
	return &Manager{
		store: store,
		entry: entryStateID,
		locks: make(map[string]*lockEntry),
	}
}

func (m *Manager) acquire(chatID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[chatID]
	if !ok {
		entry = &lockEntry{}
		m.locks[chatID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[chatID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, chatID)
	}
}

// WithLock runs fn while holding the chat's lock. State, SetState and Reset
// do not lock on their own; callers that read then write must use WithLock.
func (m *Manager) WithLock(ctx context.Context, chatID string, fn func(context.Context) error) error {
	entry := m.acquire(chatID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(chatID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// State returns the tracked state of chatID. Unseen chats report the entry
// state with seen set to false.
func (m *Manager) State(ctx context.Context, chatID string) (stateID string, seen bool, err error) {
	stateID, err = m.store.Load(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return m.entry, false, nil
		}
		return "", false, fmt.Errorf("load session %s: %w", chatID, err)
	}
	return stateID, true, nil
}

func (m *Manager) SetState(ctx context.Context, chatID string, stateID string) error {
	if err := m.store.Save(ctx, chatID, stateID); err != nil {
		return fmt.Errorf("save session %s: %w", chatID, err)
	}
	return nil
}

// Reset is SetState with the entry state.
func (m *Manager) Reset(ctx context.Context, chatID string) error {
	return m.SetState(ctx, chatID, m.entry)
}

// Forget drops the chat so its next message is treated as a first contact.
func (m *Manager) Forget(ctx context.Context, chatID string) error {
	return m.WithLock(ctx, chatID, func(ctx context.Context) error {
		if err := m.store.Delete(ctx, chatID); err != nil {
			return fmt.Errorf("delete session %s: %w", chatID, err)
		}
		return nil
	})
}

func (m *Manager) Len(ctx context.Context) (int, error) {
	return m.store.Len(ctx)
}
