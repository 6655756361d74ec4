package auth

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository stores users in an in-process map, ideal for local development or tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	now     func() time.Time
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// GetUser returns a copy of the stored user, or nil when absent.
func (r *InMemoryRepository) GetUser(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// UpsertUser inserts or replaces the user keyed by ID.
func (r *InMemoryRepository) UpsertUser(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byEmail[user.Email]; ok && owner != user.ID {
		return ErrEmailTaken
	}

	createdAt := r.now().UTC()
	if existing, ok := r.users[user.ID]; ok {
		createdAt = existing.CreatedAt
		delete(r.byEmail, existing.Email)
	}

	user.CreatedAt = createdAt
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *InMemoryRepository) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
