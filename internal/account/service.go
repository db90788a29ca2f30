// Package account owns user accounts: registration, profile updates,
// credential checks and the password reset flow. Storage is pluggable
// through Store.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"myconnectionsvr/account-service/internal/auth"
	"myconnectionsvr/account-service/internal/notify"
	"myconnectionsvr/account-service/internal/token"
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type TokenIssuer interface {
	IssueSession(subject, role string) (string, error)
	IssueReset(subject string) (string, error)
	Verify(tokenString string) (token.Claims, error)
	ResetTTL() time.Duration
}

type ServiceConfig struct {
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Notifier notify.Notifier
	Logger   *slog.Logger

	// ResetLinkBaseURL receives the reset token as its token query parameter.
	ResetLinkBaseURL string
	// ConcealUnknownEmail makes reset requests for unknown emails succeed
	// silently instead of reporting ErrNotFound.
	ConcealUnknownEmail bool
}

// Session is the result of a successful registration or login.
type Session struct {
	Token   string
	Account Account
}

type Service struct {
	store    Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier notify.Notifier
	log      *slog.Logger

	resetLinkBase  *url.URL
	concealUnknown bool
	nowFunc        func() time.Time
}

func NewService(store Store, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(cfg.Logger)
	}
	base, err := url.Parse(strings.TrimSpace(cfg.ResetLinkBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("reset link base url must be absolute: %q", cfg.ResetLinkBaseURL)
	}

	return &Service{
		store:          store,
		hasher:         cfg.Hasher,
		tokens:         cfg.Tokens,
		notifier:       cfg.Notifier,
		log:            cfg.Logger,
		resetLinkBase:  base,
		concealUnknown: cfg.ConcealUnknownEmail,
		nowFunc:        time.Now,
	}, nil
}

// Register creates an account and signs the caller in. Granting the admin
// role requires an admin actor; everyone else registers as a user.
func (s *Service) Register(ctx context.Context, in RegisterInput, actor *auth.Identity) (Session, error) {
	in, err := normalizeRegistration(in)
	if err != nil {
		return Session{}, err
	}
	if in.Role == RoleAdmin && !isAdmin(actor) {
		return Session{}, fmt.Errorf("%w: admin role requires an admin caller", ErrForbidden)
	}

	if _, err := s.store.GetByEmail(ctx, in.Email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.store.Create(ctx, Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		return Session{}, err
	}

	tok, err := s.tokens.IssueSession(created.ID, string(created.Role))
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	s.log.InfoContext(ctx, "account registered", "account_id", created.ID, "role", created.Role)
	return Session{Token: tok, Account: created}, nil
}

// List returns all accounts, or only those holding role when it is set.
func (s *Service) List(ctx context.Context, role string) ([]Account, error) {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	if err := validateRole(r); err != nil {
		return nil, err
	}
	return s.store.List(ctx, r)
}

func (s *Service) Me(ctx context.Context, actor auth.Identity) (Account, error) {
	return s.store.GetByID(ctx, actor.Subject)
}

// Update changes the caller's own name and/or email.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, u ProfileUpdate) (Account, error) {
	if actor.Subject == "" || actor.Subject != id {
		return Account{}, fmt.Errorf("%w: cannot update another account", ErrForbidden)
	}
	u, err := normalizeProfileUpdate(u)
	if err != nil {
		return Account{}, err
	}
	if u.Empty() {
		return s.store.GetByID(ctx, id)
	}
	return s.store.UpdateProfile(ctx, id, u)
}

// Delete removes an account. Role checks happen in front of the service.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "account deleted", "account_id", id)
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Session{}, invalid("email", "is required")
	}
	if password == "" {
		return Session{}, invalid("password", "is required")
	}

	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrEmailNotFound
		}
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if !s.hasher.Verify(password, a.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.IssueSession(a.ID, string(a.Role))
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	return Session{Token: tok, Account: a}, nil
}

// RequestPasswordReset issues a reset token for the account behind email and
// hands the link to the notifier. Delivery failures are logged only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("email", "is required")
	}

	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if s.concealUnknown {
				s.log.InfoContext(ctx, "password reset requested for unknown email")
				return nil
			}
			return ErrNotFound
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	tok, err := s.tokens.IssueReset(a.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	reset := notify.Reset{
		AccountID: a.ID,
		Email:     a.Email,
		Link:      s.resetLink(tok),
		ExpiresAt: s.nowFunc().UTC().Add(s.tokens.ResetTTL()),
	}
	if err := s.notifier.PasswordResetRequested(ctx, reset); err != nil {
		s.log.ErrorContext(ctx, "deliver password reset", "account_id", a.ID, "error", err)
	}
	return nil
}

// ResetPassword replaces the password of the account named by a reset token.
// The token stays valid until it expires.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return ErrInvalidResetToken
	}
	claims, err := s.tokens.Verify(resetToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	if claims.Kind != token.KindReset {
		return fmt.Errorf("%w: unexpected token kind %q", ErrInvalidResetToken, claims.Kind)
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetPasswordHash(ctx, claims.Subject, hash); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset", "account_id", claims.Subject)
	return nil
}

// EnsureBootstrapAdmin creates the configured admin account when it does not
// exist yet. It reports whether an account was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, name, email, password string) (Account, bool, error) {
	in, err := normalizeRegistration(RegisterInput{Name: name, Email: email, Password: password, Role: RoleAdmin})
	if err != nil {
		return Account{}, false, fmt.Errorf("bootstrap admin: %w", err)
	}

	existing, err := s.store.GetByEmail(ctx, in.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, false, fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	created, err := s.store.Create(ctx, Account{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: RoleAdmin})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			existing, getErr := s.store.GetByEmail(ctx, in.Email)
			return existing, false, getErr
		}
		return Account{}, false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	return created, true, nil
}

func (s *Service) resetLink(tok string) string {
	u := *s.resetLinkBase
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

func isAdmin(actor *auth.Identity) bool {
	return actor != nil && strings.EqualFold(actor.Role, string(RoleAdmin))
}
