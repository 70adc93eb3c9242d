package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
)

// UserDirectory is the in-memory storage.UserDirectory backend. Seed it
// with Put; in a real deployment the auth subsystem owns the user table.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]models.User)}
}

// Put adds or replaces a user entry.
func (d *UserDirectory) Put(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *UserDirectory) List(_ context.Context, excludeID string) ([]models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.User, 0, len(d.users))
	for id, u := range d.users {
		if id == excludeID {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *UserDirectory) Get(_ context.Context, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := u
	return &out, nil
}
