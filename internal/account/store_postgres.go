package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore keeps accounts in the accounts table created by the
// migrations package.
type PostgresStore struct {
	db    *sql.DB
	newID func() string
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db, newID: uuid.NewString}, nil
}

const accountColumns = `id, name, email, password_hash, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	var role string
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.Role = Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, a Account) (Account, error) {
	a.ID = s.newID()

	const q = `
INSERT INTO accounts (id, name, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, q, a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.getOne(ctx, q, id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	if email == "" {
		return Account{}, ErrNotFound
	}
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return s.getOne(ctx, q, email)
}

func (s *PostgresStore) getOne(ctx context.Context, q string, arg any) (Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, role Role) ([]Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if role != "" {
		q += ` WHERE role = $1`
		args = append(args, string(role))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}

	const q = `
UPDATE accounts
SET name = COALESCE($2, name),
	email = COALESCE($3, email),
	updated_at = NOW()
WHERE id = $1
RETURNING ` + accountColumns
	a, err := scanAccount(s.db.QueryRowContext(ctx, q, id, nullString(u.Name), nullString(u.Email)))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return Account{}, ErrNotFound
		case isUniqueViolation(err):
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const q = `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const q = `DELETE FROM accounts WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
