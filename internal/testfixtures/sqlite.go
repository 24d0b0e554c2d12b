package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/volunteer-coordinator/internal/persistence"
	"github.com/example/volunteer-coordinator/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// storage instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users       persistence.UserRepository
	Credentials persistence.CredentialRepository
	Events      persistence.EventRepository
	Assignments persistence.AssignmentRepository
	Swaps       persistence.SwapRepository
	Preferences persistence.PreferenceRepository
	Sessions    persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated store in t's temporary directory and
// returns repositories bound to it. The store is closed via t.Cleanup.
func NewSQLiteHarness(t *testing.T) *SQLiteHarness {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "coordinator-test.db")
	pool, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	users := sqlite.NewUserRepository(pool)
	harness := &SQLiteHarness{
		Users:       users,
		Credentials: users,
		Events:      sqlite.NewEventRepository(pool),
		Assignments: sqlite.NewAssignmentRepository(pool),
		Swaps:       sqlite.NewSwapRepository(pool),
		Preferences: sqlite.NewPreferenceRepository(pool),
		Sessions:    sqlite.NewSessionRepository(pool),
		cleanup: func() {
			pool.Close()
		},
	}
	t.Cleanup(harness.Close)
	return harness
}
