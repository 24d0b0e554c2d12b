package sqlite

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		email          TEXT NOT NULL COLLATE NOCASE UNIQUE,
		full_name      TEXT NOT NULL,
		role           TEXT NOT NULL CHECK (role IN ('volunteer', 'organizer', 'super_organizer')),
		phone_number   TEXT,
		calendar_token TEXT NOT NULL UNIQUE,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		password_hash TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		location   TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sub_shifts (
		id         TEXT PRIMARY KEY,
		event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		role_name  TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		capacity   INTEGER NOT NULL CHECK (capacity >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shift_assignments (
		id           TEXT PRIMARY KEY,
		sub_shift_id TEXT NOT NULL REFERENCES sub_shifts(id) ON DELETE CASCADE,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status       TEXT NOT NULL CHECK (status IN ('pending', 'confirmed')),
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		UNIQUE (sub_shift_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS swap_requests (
		id             TEXT PRIMARY KEY,
		assignment_id  TEXT NOT NULL REFERENCES shift_assignments(id) ON DELETE CASCADE,
		requester_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status         TEXT NOT NULL CHECK (status IN ('open', 'accepted', 'cancelled')),
		accepted_by_id TEXT REFERENCES users(id),
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id      TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		enabled      INTEGER NOT NULL DEFAULT 1,
		lead_minutes INTEGER NOT NULL CHECK (lead_minutes BETWEEN 1 AND 10080),
		timezone     TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		endpoint   TEXT NOT NULL,
		p256dh_key TEXT NOT NULL,
		auth_key   TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (user_id, endpoint)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sub_shifts_event ON sub_shifts(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_sub_shift ON shift_assignments(sub_shift_id)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_user ON shift_assignments(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_swaps_status ON swap_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token)`,
}

// Migrate creates the schema when it does not yet exist.
func (p *Pool) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
