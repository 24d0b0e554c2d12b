package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService is the thin auth/role collaborator: it issues bearer session
// tokens and resolves them back to a Principal carrying the caller's role.
// The domain services trust the Principal it produces and enforce their own
// per-operation authorization on top.
type AuthService struct {
	users          persistence.UserRepository
	credentials    persistence.CredentialRepository
	sessions       persistence.SessionRepository
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService wires dependencies for authentication flows.
func NewAuthService(
	users persistence.UserRepository,
	credentials persistence.CredentialRepository,
	sessions persistence.SessionRepository,
	verify PasswordVerifier,
	tokenGenerator func() string,
	now func() time.Time,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		users:          users,
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

// Session represents an issued authentication session.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (User, Session, error) {
	if s == nil {
		return User{}, Session{}, fmt.Errorf("AuthService is nil")
	}

	email = strings.TrimSpace(strings.ToLower(email))
	logger := serviceLogger(ctx, s.logger, "auth", "authenticate", "email", email)

	if email == "" || password == "" {
		return User{}, Session{}, ErrInvalidCredentials
	}

	record, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, Session{}, ErrInvalidCredentials
		}
		return User{}, Session{}, err
	}

	credential, err := s.credentials.GetCredential(ctx, record.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, Session{}, ErrInvalidCredentials
		}
		return User{}, Session{}, err
	}

	if err := s.verifyPassword(credential.PasswordHash, password); err != nil {
		logger.WarnContext(ctx, "password verification failed")
		return User{}, Session{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return User{}, Session{}, err
	}

	session := persistence.Session{
		ID:        s.tokenGenerator(),
		UserID:    record.ID,
		Token:     s.tokenGenerator(),
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return User{}, Session{}, err
	}

	logger.InfoContext(ctx, "authentication succeeded", "user_id", record.ID)
	return toUser(record), Session{Token: session.Token, UserID: session.UserID, ExpiresAt: session.ExpiresAt}, nil
}

// ValidateSession resolves a bearer token to the Principal it represents.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	if token == "" {
		return Principal{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !s.now().Before(session.ExpiresAt) {
		return Principal{}, ErrSessionExpired
	}

	record, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		return Principal{}, mapRepoError(err)
	}

	role, err := ParseRole(record.Role)
	if err != nil {
		// A role outside the closed enum must never grant access.
		return Principal{}, ErrForbidden
	}

	return Principal{UserID: record.ID, Role: role}, nil
}

// RevokeSession invalidates a bearer token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	err := s.sessions.RevokeSession(ctx, token, s.now())
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
