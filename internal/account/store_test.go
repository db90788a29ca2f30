package account

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestMemoryStore() *InMemoryStore {
	s := NewInMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var n int
	s.nowFunc = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	var ids int
	s.newID = func() string {
		ids++
		return fmt.Sprintf("acc-%02d", ids)
	}
	return s
}

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	created, err := s.Create(ctx, Account{Name: "Alice Smith", Email: "alice@example.com", PasswordHash: "h", Role: RoleUser})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID != "acc-01" {
		t.Fatalf("expected id acc-01, got %q", created.ID)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected matching creation timestamps, got %v / %v", created.CreatedAt, created.UpdatedAt)
	}

	byID, err := s.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	byEmail, err := s.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if byID != byEmail {
		t.Fatalf("lookups disagree: %+v vs %+v", byID, byEmail)
	}
}

func TestInMemoryStoreRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	if _, err := s.Create(ctx, Account{Name: "Alice Smith", Email: "alice@example.com", Role: RoleUser}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	_, err := s.Create(ctx, Account{Name: "Alice Again", Email: "alice@example.com", Role: RoleUser})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 1 {
		t.Fatalf("expected 1 account, got %d", len(all))
	}
}

func TestInMemoryStoreListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	for _, a := range []Account{
		{Name: "Carol Admin", Email: "carol@example.com", Role: RoleAdmin},
		{Name: "Alice Smith", Email: "alice@example.com", Role: RoleUser},
		{Name: "Bobby Jones", Email: "bob@example.com", Role: RoleUser},
	} {
		if _, err := s.Create(ctx, a); err != nil {
			t.Fatalf("Create(%s) error: %v", a.Email, err)
		}
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"carol@example.com", "alice@example.com", "bob@example.com"}
	if len(all) != len(want) {
		t.Fatalf("expected %d accounts, got %d", len(want), len(all))
	}
	for i, email := range want {
		if all[i].Email != email {
			t.Fatalf("position %d: expected %s, got %s", i, email, all[i].Email)
		}
	}

	admins, err := s.List(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("List(admin) error: %v", err)
	}
	if len(admins) != 1 || admins[0].Email != "carol@example.com" {
		t.Fatalf("unexpected admins: %+v", admins)
	}
}

func TestInMemoryStoreUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	alice, _ := s.Create(ctx, Account{Name: "Alice Smith", Email: "alice@example.com", Role: RoleUser})
	if _, err := s.Create(ctx, Account{Name: "Bobby Jones", Email: "bob@example.com", Role: RoleUser}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	name := "Alice Cooper"
	email := "cooper@example.com"
	updated, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if updated.Name != name || updated.Email != email {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.UpdatedAt.After(alice.UpdatedAt) {
		t.Fatalf("expected updated_at to advance")
	}
	if _, err := s.GetByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old email to be released, got %v", err)
	}

	taken := "bob@example.com"
	if _, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := s.UpdateProfile(ctx, "missing", ProfileUpdate{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreDeleteAndPasswordHash(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()

	alice, _ := s.Create(ctx, Account{Name: "Alice Smith", Email: "alice@example.com", PasswordHash: "old", Role: RoleUser})

	if err := s.SetPasswordHash(ctx, alice.ID, "new"); err != nil {
		t.Fatalf("SetPasswordHash() error: %v", err)
	}
	got, _ := s.GetByID(ctx, alice.ID)
	if got.PasswordHash != "new" {
		t.Fatalf("expected hash new, got %q", got.PasswordHash)
	}
	if err := s.SetPasswordHash(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := s.Delete(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.GetByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected email index cleared, got %v", err)
	}
}

func TestInMemoryStoreRollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore()
	alice, _ := s.Create(ctx, Account{Name: "Alice Smith", Email: "alice@example.com", Role: RoleUser})

	boom := errors.New("disk full")
	s.persist = func([]Account) error { return boom }

	if _, err := s.Create(ctx, Account{Name: "Bobby Jones", Email: "bob@example.com", Role: RoleUser}); !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if _, err := s.GetByEmail(ctx, "bob@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected failed create to be rolled back, got %v", err)
	}

	name := "Alice Cooper"
	if _, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Name: &name}); !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	got, _ := s.GetByID(ctx, alice.ID)
	if got.Name != "Alice Smith" {
		t.Fatalf("expected name rollback, got %q", got.Name)
	}

	if err := s.Delete(ctx, alice.ID); !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if _, err := s.GetByID(ctx, alice.ID); err != nil {
		t.Fatalf("expected delete rollback, got %v", err)
	}
}
