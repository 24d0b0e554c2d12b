package sqlite

import (
	"context"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// PreferenceRepository implements persistence.PreferenceRepository on SQLite.
type PreferenceRepository struct {
	pool *Pool
}

// NewPreferenceRepository returns a repository bound to the supplied pool.
func NewPreferenceRepository(pool *Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

// GetPreference retrieves a user's notification preference.
func (r *PreferenceRepository) GetPreference(ctx context.Context, userID string) (persistence.NotificationPreference, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT user_id, enabled, lead_minutes, timezone, updated_at
		 FROM notification_preferences WHERE user_id = ?`, userID)
	return scanPreference(row)
}

// UpsertPreference stores or replaces a user's notification preference.
func (r *PreferenceRepository) UpsertPreference(ctx context.Context, pref persistence.NotificationPreference) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, enabled, lead_minutes, timezone, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			enabled = excluded.enabled,
			lead_minutes = excluded.lead_minutes,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		pref.UserID,
		boolToInt(pref.Enabled),
		pref.LeadMinutes,
		pref.Timezone,
		formatTime(pref.UpdatedAt),
	)
	return mapError(err)
}

// ListEnabledPreferences returns the preferences of every user who has
// reminders switched on.
func (r *PreferenceRepository) ListEnabledPreferences(ctx context.Context) ([]persistence.NotificationPreference, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT user_id, enabled, lead_minutes, timezone, updated_at
		 FROM notification_preferences WHERE enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	prefs := make([]persistence.NotificationPreference, 0)
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}

// CreatePushSubscription registers a Web Push endpoint for a user. A second
// registration of the same (user, endpoint) pair reports ErrDuplicate; the
// caller decides whether that is an error.
func (r *PreferenceRepository) CreatePushSubscription(ctx context.Context, sub persistence.PushSubscription) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dhKey,
		sub.AuthKey,
		formatTime(sub.CreatedAt),
	)
	return mapError(err)
}

// DeletePushSubscription removes a registered endpoint.
func (r *PreferenceRepository) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	result, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`, userID, endpoint)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// ListPushSubscriptions returns the endpoints registered by a user.
func (r *PreferenceRepository) ListPushSubscriptions(ctx context.Context, userID string) ([]persistence.PushSubscription, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	subs := make([]persistence.PushSubscription, 0)
	for rows.Next() {
		var sub persistence.PushSubscription
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &createdAt); err != nil {
			return nil, err
		}
		if sub.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanPreference(row rowScanner) (persistence.NotificationPreference, error) {
	var pref persistence.NotificationPreference
	var enabled int
	var updatedAt string
	if err := row.Scan(&pref.UserID, &enabled, &pref.LeadMinutes, &pref.Timezone, &updatedAt); err != nil {
		return persistence.NotificationPreference{}, mapError(err)
	}
	pref.Enabled = enabled != 0
	var err error
	if pref.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.NotificationPreference{}, err
	}
	return pref, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
