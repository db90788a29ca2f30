// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCost is returned when the configured work factor is unusable.
var ErrInvalidCost = errors.New("invalid hash cost")

// Hash returns the bcrypt hash of plaintext using the given cost.
func Hash(plaintext string, cost int) (string, error) {
	if err := validateCost(cost); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Hasher binds a validated cost so callers don't carry it around.
type Hasher struct {
	cost int
}

func NewHasher(cost int) (*Hasher, error) {
	if err := validateCost(cost); err != nil {
		return nil, err
	}
	return &Hasher{cost: cost}, nil
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	return Hash(plaintext, h.cost)
}

func (h *Hasher) Verify(plaintext, hash string) bool {
	return Verify(plaintext, hash)
}

func (h *Hasher) Cost() int {
	return h.cost
}

// bcrypt silently raises costs below MinCost, so only the upper bound is
// enforced beyond positivity.
func validateCost(cost int) error {
	if cost <= 0 || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d", ErrInvalidCost, cost)
	}
	return nil
}
