package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"roomsplit/internal/core"
	"roomsplit/internal/log"
)

// Store persists accounts and sessions.
type Store interface {
	CreateAccount(ctx context.Context, acct core.Account, profile core.UserProfile) error
	GetAccountByEmail(ctx context.Context, email string) (core.Account, error)
	GetAccount(ctx context.Context, userID string) (core.Account, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateEmail(ctx context.Context, userID, email string) error

	CreateSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, token string) (core.Session, error)
	RenewSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID, keep string) error
}

// DefaultSessionTTL is how long a session lasts without activity.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Service is the local identity provider: email and password accounts with
// rolling sessions.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// TTL is the lifetime given to new and renewed sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

// SignUp creates an account with an empty, roomless profile and signs the
// new user in.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (core.Session, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateName(name); err != nil {
		return core.Session{}, err
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.Session{}, err
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.Session{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return core.Session{}, err
	}

	userID := uuid.NewString()
	now := s.now()
	acct := core.Account{UserID: userID, Email: email, PasswordHash: hash, CreatedAt: now}
	profile := core.UserProfile{UserID: userID, Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateAccount(ctx, acct, profile); err != nil {
		return core.Session{}, err
	}

	slog.InfoContext(ctx, "Account created",
		log.FieldComponent, log.ComponentAuth, log.FieldOperation, log.OpCreate, log.FieldUserID, userID)
	return s.newSession(ctx, userID)
}

// SignIn checks credentials and opens a session. Unknown emails and wrong
// passwords both yield core.ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acct, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("load account: %w", err)
	}
	if !CheckPassword(password, acct.PasswordHash) {
		slog.WarnContext(ctx, "Sign in rejected", log.FieldComponent, log.ComponentAuth, log.FieldUserID, acct.UserID)
		return core.Session{}, core.ErrInvalidCredentials
	}
	return s.newSession(ctx, acct.UserID)
}

// SignOut ends the session. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a token to its session. A session in the second
// half of its lifetime is extended; renewed reports whether that happened.
func (s *Service) Authenticate(ctx context.Context, token string) (sess core.Session, renewed bool, err error) {
	if token == "" {
		return core.Session{}, false, core.ErrInvalidCredentials
	}
	sess, err = s.store.GetSession(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, false, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, false, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	if sess.Expired(now) {
		_ = s.store.DeleteSession(ctx, token)
		return core.Session{}, false, core.ErrInvalidCredentials
	}
	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		next := now.Add(s.ttl)
		if err := s.store.RenewSession(ctx, token, next); err != nil {
			slog.WarnContext(ctx, "Failed to renew session",
				log.FieldComponent, log.ComponentAuth, log.FieldUserID, sess.UserID, log.FieldError, err)
			return sess, false, nil
		}
		sess.ExpiresAt = next
		renewed = true
	}
	return sess, renewed, nil
}

// Reauthenticate confirms the user's password before a sensitive change.
func (s *Service) Reauthenticate(ctx context.Context, userID, password string) error {
	acct, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if !CheckPassword(password, acct.PasswordHash) {
		return core.ErrInvalidCredentials
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := s.Reauthenticate(ctx, userID, current); err != nil {
		return err
	}
	if err := core.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	slog.InfoContext(ctx, "Password changed", log.FieldComponent, log.ComponentAuth, log.FieldUserID, userID)
	return nil
}

// ChangeEmail moves the account and profile to a new email after checking
// the password.
func (s *Service) ChangeEmail(ctx context.Context, userID, password, newEmail string) error {
	if err := s.Reauthenticate(ctx, userID, password); err != nil {
		return err
	}
	email, err := NormalizeEmail(newEmail)
	if err != nil {
		return err
	}
	if err := s.store.UpdateEmail(ctx, userID, email); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Email changed", log.FieldComponent, log.ComponentAuth, log.FieldUserID, userID)
	return nil
}

// RevokeOtherSessions signs the user out everywhere except keep.
func (s *Service) RevokeOtherSessions(ctx context.Context, userID, keep string) error {
	return s.store.DeleteUserSessions(ctx, userID, keep)
}

func (s *Service) newSession(ctx context.Context, userID string) (core.Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return core.Session{}, err
	}
	sess := core.Session{Token: token, UserID: userID, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return core.Session{}, err
	}
	return sess, nil
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &core.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return email, nil
}
