package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists accounts. Implementations enforce email uniqueness and
// return ErrNotFound / ErrEmailTaken so the service can map them.
type Store interface {
	// Create assigns the id and timestamps and returns the stored record.
	Create(ctx context.Context, a Account) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	// List returns accounts ordered by creation time. An empty role lists all.
	List(ctx context.Context, role Role) ([]Account, error)
	UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Account, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string

	nowFunc func() time.Time
	newID   func() string
	// persist, when set, is called with the full record set after every
	// mutation while the lock is held. A failure rolls the mutation back.
	persist func([]Account) error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

func (s *InMemoryStore) Create(_ context.Context, a Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[a.Email]; taken {
		return Account{}, ErrEmailTaken
	}

	now := s.nowFunc().UTC()
	a.ID = s.newID()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.putLocked(a)

	if err := s.commitLocked(func() { s.removeLocked(a) }); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) GetByEmail(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *InMemoryStore) List(_ context.Context, role Role) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if role != "" && a.Role != role {
			continue
		}
		out = append(out, a)
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) UpdateProfile(_ context.Context, id string, u ProfileUpdate) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	next := prev
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Email != nil && *u.Email != prev.Email {
		if _, taken := s.byEmail[*u.Email]; taken {
			return Account{}, ErrEmailTaken
		}
		next.Email = *u.Email
	}
	next.UpdatedAt = s.nowFunc().UTC()

	s.removeLocked(prev)
	s.putLocked(next)
	if err := s.commitLocked(func() {
		s.removeLocked(next)
		s.putLocked(prev)
	}); err != nil {
		return Account{}, err
	}
	return next, nil
}

func (s *InMemoryStore) SetPasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	next := prev
	next.PasswordHash = hash
	next.UpdatedAt = s.nowFunc().UTC()
	s.accounts[id] = next

	return s.commitLocked(func() { s.accounts[id] = prev })
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	s.removeLocked(prev)

	return s.commitLocked(func() { s.putLocked(prev) })
}

func (s *InMemoryStore) putLocked(a Account) {
	s.accounts[a.ID] = a
	s.byEmail[a.Email] = a.ID
}

func (s *InMemoryStore) removeLocked(a Account) {
	delete(s.accounts, a.ID)
	delete(s.byEmail, a.Email)
}

func (s *InMemoryStore) commitLocked(undo func()) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist(s.snapshotLocked()); err != nil {
		undo()
		return err
	}
	return nil
}

func (s *InMemoryStore) snapshotLocked() []Account {
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sortByCreation(out)
	return out
}

func sortByCreation(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
		}
		return strings.Compare(accounts[i].ID, accounts[j].ID) < 0
	})
}
