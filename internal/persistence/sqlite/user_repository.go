package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// UserRepository implements persistence.UserRepository and
// persistence.CredentialRepository on SQLite.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository returns a repository bound to the supplied pool.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser stores a new user account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, role, phone_number, calendar_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FullName,
		user.Role,
		nullableString(user.PhoneNumber),
		user.CalendarToken,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return mapError(err)
}

// UpdateUser rewrites an existing user account.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, role = ?, phone_number = ?, calendar_token = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.FullName,
		user.Role,
		nullableString(user.PhoneNumber),
		user.CalendarToken,
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.getUserWhere(ctx, "email = ? COLLATE NOCASE", email)
}

// GetUserByCalendarToken resolves the owner of a calendar feed token.
func (r *UserRepository) GetUserByCalendarToken(ctx context.Context, token string) (persistence.User, error) {
	return r.getUserWhere(ctx, "calendar_token = ?", token)
}

func (r *UserRepository) getUserWhere(ctx context.Context, where string, arg any) (persistence.User, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, role, phone_number, calendar_token, created_at, updated_at
		 FROM users WHERE `+where, arg)
	return scanUser(row)
}

// ListUsers returns all users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, email, full_name, role, phone_number, calendar_token, created_at, updated_at
		 FROM users ORDER BY full_name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and, via cascades, their credentials, sessions,
// assignments, preferences, and push subscriptions.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetCredential retrieves a user's password hash.
func (r *UserRepository) GetCredential(ctx context.Context, userID string) (persistence.Credential, error) {
	var credential persistence.Credential
	var updatedAt string
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT user_id, password_hash, updated_at FROM credentials WHERE user_id = ?`, userID,
	).Scan(&credential.UserID, &credential.PasswordHash, &updatedAt)
	if err != nil {
		return persistence.Credential{}, mapError(err)
	}
	if credential.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Credential{}, err
	}
	return credential, nil
}

// UpsertCredential stores or replaces a user's password hash.
func (r *UserRepository) UpsertCredential(ctx context.Context, credential persistence.Credential) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		credential.UserID,
		credential.PasswordHash,
		formatTime(credential.UpdatedAt),
	)
	return mapError(err)
}

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var phone sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &phone, &user.CalendarToken, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, mapError(err)
	}
	user.PhoneNumber = fromNullString(phone)
	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}
