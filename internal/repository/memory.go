package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
)

// MemoryUserRepository keeps accounts in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) UserExists(_ context.Context, login string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[login]
	return ok, nil
}

func (r *MemoryUserRepository) GetUser(_ context.Context, login string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[login]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) UpsertUser(_ context.Context, u models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Login] = u
	return nil
}

// MemoryShareRepository keeps shares in process memory. Ids start at 1.
type MemoryShareRepository struct {
	mu     sync.Mutex
	nextID int64
	shares map[int64]models.Share
	now    func() time.Time
}

// NewMemoryShareRepository returns an empty store.
func NewMemoryShareRepository() *MemoryShareRepository {
	return &MemoryShareRepository{shares: make(map[int64]models.Share), now: time.Now}
}

func (r *MemoryShareRepository) CreateShare(_ context.Context, s *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = r.now().UTC().Truncate(time.Second)
	r.shares[s.ID] = clone(*s)
	return nil
}

func (r *MemoryShareRepository) GetShare(_ context.Context, id int64) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return nil, ErrShareNotFound
	}
	c := clone(s)
	return &c, nil
}

func (r *MemoryShareRepository) ListShares(_ context.Context, f models.ShareFilter) ([]models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Share
	for _, s := range r.shares {
		if !(f.Reshares && f.Path != "") && s.Owner != f.Owner {
			continue
		}
		if f.Path != "" {
			if f.Subfiles && ParentOf(s.Path) != f.Path {
				continue
			}
			if !f.Subfiles && s.Path != f.Path {
				continue
			}
		}
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryShareRepository) UpdateShare(_ context.Context, s *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.shares[s.ID]
	if !ok {
		return ErrShareNotFound
	}
	cur.Permissions = s.Permissions
	cur.PasswordHash = s.PasswordHash
	cur.Expiration = s.Expiration
	r.shares[s.ID] = clone(cur)
	return nil
}

func (r *MemoryShareRepository) DeleteShare(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shares[id]; !ok {
		return ErrShareNotFound
	}
	delete(r.shares, id)
	return nil
}

func (r *MemoryShareRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.shares {
		if s.ShareType == models.ShareTypePublicLink && s.Expiration != nil && s.Expiration.Before(before) {
			delete(r.shares, id)
			n++
		}
	}
	return n, nil
}

func clone(s models.Share) models.Share {
	if s.Expiration != nil {
		t := *s.Expiration
		s.Expiration = &t
	}
	return s
}
