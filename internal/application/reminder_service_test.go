package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
	"github.com/example/volunteer-coordinator/internal/testfixtures"
)

func enablePreference(t *testing.T, store *memoryStore, userID string, leadMinutes int, timezone string) {
	t.Helper()
	err := store.UpsertPreference(context.Background(), persistence.NotificationPreference{
		UserID:      userID,
		Enabled:     true,
		LeadMinutes: leadMinutes,
		Timezone:    timezone,
		UpdatedAt:   testfixtures.ReferenceTime(),
	})
	if err != nil {
		t.Fatalf("seed preference: %v", err)
	}
}

func seedConfirmedShiftAt(t *testing.T, store *memoryStore, userID string, start time.Time) persistence.ShiftAssignment {
	t.Helper()
	event := testfixtures.NewEvent(func(e *persistence.Event) {
		e.Start = start
		e.End = start.Add(4 * time.Hour)
	})
	shift := testfixtures.NewSubShift(event.ID, func(s *persistence.SubShift) {
		s.Start = start
		s.End = start.Add(2 * time.Hour)
	})
	if err := store.CreateEvent(context.Background(), event, []persistence.SubShift{shift}); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	assignment := testfixtures.NewAssignment(shift.ID, userID)
	if err := store.CreateAssignment(context.Background(), assignment); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return assignment
}

func TestScanEmitsAtExactLead(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, user.ID, 1440, "UTC")

	reference := testfixtures.ReferenceTime()
	assignment := seedConfirmedShiftAt(t, store, user.ID, reference.Add(24*time.Hour))
	notifier := &recordingNotifier{}

	service := NewReminderService(store, store, store, notifier, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1", emitted)
	}

	notes := notifier.sent()
	if len(notes) != 1 || notes[0].UserID != user.ID {
		t.Fatalf("notifications = %+v, want one for %q", notes, user.ID)
	}
	if !strings.HasPrefix(notes[0].Note.Tag, "shift-reminder-"+assignment.ID) {
		t.Errorf("tag = %q, want shift-reminder prefix for assignment", notes[0].Note.Tag)
	}
}

func TestScanSkipsShiftsOutsideWindow(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
	}{
		{name: "starts before the window", offset: 24*time.Hour - time.Minute},
		{name: "starts after the window", offset: 24*time.Hour + time.Minute},
		{name: "starts much later", offset: 48 * time.Hour},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			user := seedUser(t, store, RoleVolunteer)
			enablePreference(t, store, user.ID, 1440, "UTC")

			reference := testfixtures.ReferenceTime()
			seedConfirmedShiftAt(t, store, user.ID, reference.Add(tc.offset))

			service := NewReminderService(store, store, store, nil, time.Minute, fixedClock(reference), nil)

			emitted, err := service.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan returned error: %v", err)
			}
			if emitted != 0 {
				t.Fatalf("emitted = %d, want 0", emitted)
			}
		})
	}
}

func TestScanDoesNotDoubleSend(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, user.ID, 1440, "UTC")

	reference := testfixtures.ReferenceTime()
	seedConfirmedShiftAt(t, store, user.ID, reference.Add(24*time.Hour))
	notifier := &recordingNotifier{}

	service := NewReminderService(store, store, store, notifier, time.Minute, fixedClock(reference), nil)

	first, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("first Scan returned error: %v", err)
	}
	second, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan returned error: %v", err)
	}
	if first != 1 || second != 0 {
		t.Fatalf("emitted = (%d, %d), want (1, 0)", first, second)
	}
	if notes := notifier.sent(); len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
}

func TestScanIgnoresPendingAssignments(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, user.ID, 1440, "UTC")

	reference := testfixtures.ReferenceTime()
	assignment := seedConfirmedShiftAt(t, store, user.ID, reference.Add(24*time.Hour))

	stored, err := store.GetAssignment(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	stored.Status = "pending"
	if err := store.UpdateAssignment(context.Background(), stored); err != nil {
		t.Fatalf("UpdateAssignment returned error: %v", err)
	}

	service := NewReminderService(store, store, store, nil, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted = %d, want 0", emitted)
	}
}

func TestScanHonoursCustomLead(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, user.ID, 120, "UTC")

	reference := testfixtures.ReferenceTime()
	seedConfirmedShiftAt(t, store, user.ID, reference.Add(2*time.Hour))
	notifier := &recordingNotifier{}

	service := NewReminderService(store, store, store, notifier, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1", emitted)
	}
}

func TestScanFallsBackToUTCForBadTimezone(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, user.ID, 1440, "Not/AZone")

	reference := testfixtures.ReferenceTime()
	seedConfirmedShiftAt(t, store, user.ID, reference.Add(24*time.Hour))
	notifier := &recordingNotifier{}

	service := NewReminderService(store, store, store, notifier, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1", emitted)
	}

	notes := notifier.sent()
	wantTime := reference.Add(24 * time.Hour).UTC().Format("Jan 2, 15:04")
	if !strings.Contains(notes[0].Note.Body, wantTime) {
		t.Errorf("body = %q, want UTC-rendered time %q", notes[0].Note.Body, wantTime)
	}
}

func TestScanIsolatesUserFailures(t *testing.T) {
	store := newMemoryStore()
	broken := seedUser(t, store, RoleVolunteer)
	healthy := seedUser(t, store, RoleVolunteer)
	enablePreference(t, store, broken.ID, 1440, "UTC")
	enablePreference(t, store, healthy.ID, 1440, "UTC")

	reference := testfixtures.ReferenceTime()
	start := reference.Add(24 * time.Hour)

	// The broken user's shift points at an event that no longer exists, so
	// enrichment fails for them.
	orphanShift := testfixtures.NewSubShift("ghost-event", func(s *persistence.SubShift) {
		s.Start = start
		s.End = start.Add(2 * time.Hour)
	})
	store.subShifts[orphanShift.ID] = orphanShift
	if err := store.CreateAssignment(context.Background(), testfixtures.NewAssignment(orphanShift.ID, broken.ID)); err != nil {
		t.Fatalf("seed orphan assignment: %v", err)
	}

	seedConfirmedShiftAt(t, store, healthy.ID, start)
	notifier := &recordingNotifier{}

	service := NewReminderService(store, store, store, notifier, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1", emitted)
	}
	notes := notifier.sent()
	if len(notes) != 1 || notes[0].UserID != healthy.ID {
		t.Fatalf("notifications = %+v, want one for %q", notes, healthy.ID)
	}
}

func TestScanIgnoresDisabledPreferences(t *testing.T) {
	store := newMemoryStore()
	user := seedUser(t, store, RoleVolunteer)
	err := store.UpsertPreference(context.Background(), persistence.NotificationPreference{
		UserID:      user.ID,
		Enabled:     false,
		LeadMinutes: 1440,
		Timezone:    "UTC",
	})
	if err != nil {
		t.Fatalf("seed preference: %v", err)
	}

	reference := testfixtures.ReferenceTime()
	seedConfirmedShiftAt(t, store, user.ID, reference.Add(24*time.Hour))

	service := NewReminderService(store, store, store, nil, time.Minute, fixedClock(reference), nil)

	emitted, err := service.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("emitted = %d, want 0", emitted)
	}
}
