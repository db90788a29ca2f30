package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"myconnectionsvr/account-service/internal/account"
)

// runStoreContract checks the behaviour every account.Store must share.
// Emails are made unique per run so the suite can target shared databases.
func runStoreContract(t *testing.T, store account.Store, missingID string) {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()
	email := func(name string) string { return fmt.Sprintf("%s_%d@itest.example.com", name, suffix) }

	alice, err := store.Create(ctx, account.Account{Name: "Alice Smith", Email: email("alice"), PasswordHash: "h1", Role: account.RoleUser})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Delete(context.Background(), alice.ID) })
	if alice.ID == "" || alice.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", alice)
	}

	if _, err := store.Create(ctx, account.Account{Name: "Alice Again", Email: email("alice"), PasswordHash: "h2", Role: account.RoleUser}); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := store.GetByEmail(ctx, email("alice"))
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if got.ID != alice.ID || got.PasswordHash != "h1" {
		t.Fatalf("unexpected account %+v", got)
	}
	if _, err := store.GetByID(ctx, missingID); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
	if _, err := store.GetByID(ctx, "not-an-id"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	carol, err := store.Create(ctx, account.Account{Name: "Carol Admin", Email: email("carol"), PasswordHash: "h3", Role: account.RoleAdmin})
	if err != nil {
		t.Fatalf("Create(admin) error: %v", err)
	}
	t.Cleanup(func() { _ = store.Delete(context.Background(), carol.ID) })

	admins, err := store.List(ctx, account.RoleAdmin)
	if err != nil {
		t.Fatalf("List(admin) error: %v", err)
	}
	var foundCarol, foundAlice bool
	for _, a := range admins {
		foundCarol = foundCarol || a.ID == carol.ID
		foundAlice = foundAlice || a.ID == alice.ID
	}
	if !foundCarol || foundAlice {
		t.Fatalf("role filter failed: %+v", admins)
	}

	name := "Alice Cooper"
	updated, err := store.UpdateProfile(ctx, alice.ID, account.ProfileUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if updated.Name != name || updated.Email != email("alice") {
		t.Fatalf("unexpected update %+v", updated)
	}
	taken := email("carol")
	if _, err := store.UpdateProfile(ctx, alice.ID, account.ProfileUpdate{Email: &taken}); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := store.SetPasswordHash(ctx, alice.ID, "h-new"); err != nil {
		t.Fatalf("SetPasswordHash() error: %v", err)
	}
	got, _ = store.GetByID(ctx, alice.ID)
	if got.PasswordHash != "h-new" {
		t.Fatalf("expected new hash, got %q", got.PasswordHash)
	}

	if err := store.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := store.Delete(ctx, alice.ID); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.SetPasswordHash(ctx, alice.ID, "x"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted account, got %v", err)
	}
}

// runConcurrentCreate races registrations for one email; exactly one wins.
func runConcurrentCreate(t *testing.T, store account.Store) {
	t.Helper()
	email := fmt.Sprintf("race_%d@itest.example.com", time.Now().UnixNano())

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := store.Create(context.Background(), account.Account{Name: "Racer One", Email: email, PasswordHash: "h", Role: account.RoleUser})
			if err == nil {
				t.Cleanup(func() { _ = store.Delete(context.Background(), a.ID) })
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, account.ErrEmailTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one winner, got %d", ok)
	}
}

func TestInMemoryStoreContract(t *testing.T) {
	store := account.NewInMemoryStore()
	runStoreContract(t, store, "missing")
	runConcurrentCreate(t, store)
}
