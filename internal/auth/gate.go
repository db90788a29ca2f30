// Package auth is the request gate in front of protected account routes. It
// verifies bearer tokens, attaches the caller's identity to the request
// context and enforces role membership.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"myconnectionsvr/account-service/internal/token"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

const (
	msgMissingToken = "Access denied, no token provided"
	msgInvalidToken = "Invalid token"
)

type Verifier interface {
	Verify(tokenString string) (token.Claims, error)
}

type Gate struct {
	verifier Verifier
	log      *slog.Logger
}

func NewGate(v Verifier, logger *slog.Logger) (*Gate, error) {
	if v == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{verifier: v, log: logger}, nil
}

// Identify resolves the caller behind r without writing a response. An absent
// Authorization header yields ErrMissingToken, anything else that fails yields
// ErrInvalidToken. Only session tokens identify a caller.
func (g *Gate) Identify(r *http.Request) (Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Identity{}, ErrMissingToken
	}
	raw, err := extractBearerToken(header)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, err := g.verifier.Verify(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != token.KindSession {
		return Identity{}, fmt.Errorf("%w: unexpected token kind %q", ErrInvalidToken, claims.Kind)
	}
	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

// Authenticate short-circuits with 401 unless the request carries a valid
// session token.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Identify(r)
		if err != nil {
			g.log.DebugContext(r.Context(), "bearer rejected", "path", r.URL.Path, "err", err)
			if errors.Is(err, ErrMissingToken) {
				writeJSONError(w, http.StatusUnauthorized, msgMissingToken)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole must be chained after Authenticate.
func RequireRole(role, deniedMessage string) func(http.Handler) http.Handler {
	if deniedMessage == "" {
		deniedMessage = "forbidden"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, msgMissingToken)
				return
			}
			if !hasRole(id, role) {
				writeJSONError(w, http.StatusForbidden, deniedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(id Identity, role string) bool {
	return strings.EqualFold(strings.TrimSpace(id.Role), role)
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// writeJSONError writes the same {"error": ...} body as the HTTP server.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
