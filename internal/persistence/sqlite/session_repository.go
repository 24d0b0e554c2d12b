package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository on SQLite.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository returns a repository bound to the supplied pool.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession stores a new authentication session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at, revoked_at)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		session.ID,
		session.UserID,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
	)
	return mapError(err)
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	var session persistence.Session
	var expiresAt, createdAt string
	var revokedAt sql.NullString
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at, revoked_at
		 FROM sessions WHERE token = ?`, token,
	).Scan(&session.ID, &session.UserID, &session.Token, &expiresAt, &createdAt, &revokedAt)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if revokedAt.Valid {
		revoked, err := parseTime(revokedAt.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &revoked
	}
	return session, nil
}

// RevokeSession marks a session revoked.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL`,
		formatTime(revokedAt), token,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// DeleteExpiredSessions removes sessions that expired before the reference time.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(reference))
	return mapError(err)
}
