// Package token issues and verifies the signed bearer tokens handed to clients.
//
// Tokens are HS256 JWTs. Nothing is stored server-side: a token stays valid
// until it expires, and the role it carries is the role the account had when
// the token was issued.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Kind separates tokens that authenticate requests from tokens that only
// authorize a password reset.
type Kind string

const (
	KindSession Kind = "session"
	KindReset   Kind = "reset"
)

// Claims is the identity data embedded in a token.
type Claims struct {
	Subject   string
	Role      string
	Kind      Kind
	ExpiresAt time.Time
}

type jwtClaims struct {
	Role string `json:"role,omitempty"`
	Kind Kind   `json:"typ"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	nowFunc    func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	if cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("reset TTL must be > 0")
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		nowFunc:    time.Now,
	}, nil
}

// Issue signs claims with an absolute expiry of now+ttl, rounded up to the
// whole second the exp claim can carry. Claims.ExpiresAt is ignored.
func (i *Issuer) Issue(c Claims, ttl time.Duration) (string, error) {
	if c.Subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := i.nowFunc()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Role: c.Role,
		Kind: c.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAt(now, ttl)),
		},
	})

	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func expiryAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(jwt.TimePrecision); !whole.Equal(exp) {
		return whole.Add(jwt.TimePrecision)
	}
	return exp
}

func (i *Issuer) IssueSession(subject, role string) (string, error) {
	return i.Issue(Claims{Subject: subject, Role: role, Kind: KindSession}, i.sessionTTL)
}

func (i *Issuer) IssueReset(subject string) (string, error) {
	return i.Issue(Claims{Subject: subject, Kind: KindReset}, i.resetTTL)
}

func (i *Issuer) ResetTTL() time.Duration {
	return i.resetTTL
}

// Verify checks signature, signing method and expiry and returns the embedded
// claims.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	parsed := &jwtClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, parsed, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || parsed.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   parsed.Subject,
		Role:      parsed.Role,
		Kind:      parsed.Kind,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}
