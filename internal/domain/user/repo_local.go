package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

// LocalRegistry is the kvstore-backed fallback registry, one JSON array
// under the users key.
type LocalRegistry struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewLocalRegistry(store kvstore.Store) *LocalRegistry {
	return &LocalRegistry{store: store}
}

func (r *LocalRegistry) load() ([]*User, error) {
	raw, err := r.store.Get(kvstore.KeyUsers)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read local users: %w", err)
	}
	var users []*User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode local users: %w", err)
	}
	return users, nil
}

func (r *LocalRegistry) persist(users []*User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode local users: %w", err)
	}
	if err := r.store.Set(kvstore.KeyUsers, raw); err != nil {
		return fmt.Errorf("write local users: %w", err)
	}
	return nil
}

func (r *LocalRegistry) Register(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	for i, existing := range users {
		if existing.Email == u.Email {
			// Keep the original registration time on profile updates.
			updated := *u
			updated.RegisteredAt = existing.RegisteredAt
			users[i] = &updated
			return r.persist(users)
		}
	}
	return r.persist(append(users, u))
}

func (r *LocalRegistry) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *LocalRegistry) List(_ context.Context) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}
