package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore is an InMemoryStore that rewrites a JSON file after every
// mutation. It suits single-instance development setups.
type FileStore struct {
	*InMemoryStore
	path string
}

// fileRecord keeps the password hash on disk; Account hides it from JSON.
type fileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("account state file path is required")
	}

	s := &FileStore{
		InMemoryStore: NewInMemoryStore(),
		path:          path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.persist = s.write
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read account store file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded []fileRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode account store file: %w", err)
	}
	for _, r := range decoded {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Email) == "" {
			continue
		}
		if _, dup := s.byEmail[r.Email]; dup {
			return fmt.Errorf("decode account store file: duplicate email %q", r.Email)
		}
		if _, dup := s.accounts[r.ID]; dup {
			return fmt.Errorf("decode account store file: duplicate id %q", r.ID)
		}
		s.putLocked(Account{
			ID:           r.ID,
			Name:         r.Name,
			Email:        r.Email,
			PasswordHash: r.PasswordHash,
			Role:         r.Role,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return nil
}

func (s *FileStore) write(accounts []Account) error {
	out := make([]fileRecord, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, fileRecord{
			ID:           a.ID,
			Name:         a.Name,
			Email:        a.Email,
			PasswordHash: a.PasswordHash,
			Role:         a.Role,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir account store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write account store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace account store file: %w", err)
	}
	return nil
}
