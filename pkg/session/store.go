package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Store persists the current flow state id per chat.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns ErrNotFound for chats that were never saved or were evicted.
	Load(ctx context.Context, chatID string) (string, error)
	Save(ctx context.Context, chatID string, stateID string) error
	Delete(ctx context.Context, chatID string) error
	Len(ctx context.Context) (int, error)
}
