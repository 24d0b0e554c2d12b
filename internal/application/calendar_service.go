package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// calendarProductID identifies this feed in generated iCalendar output.
const calendarProductID = "-//Volunteer Coordinator//Shift Feed//EN"

// CalendarService renders a user's confirmed assignments as an iCalendar
// feed. The feed is addressed by a per-user token instead of a session so
// that external calendar clients can poll it unattended.
type CalendarService struct {
	users       persistence.UserRepository
	assignments persistence.AssignmentRepository
	events      persistence.EventRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalendarService wires dependencies for calendar feed operations.
func NewCalendarService(
	users persistence.UserRepository,
	assignments persistence.AssignmentRepository,
	events persistence.EventRepository,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *CalendarService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarService{
		users:       users,
		assignments: assignments,
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Feed resolves a calendar token and returns the owner's confirmed
// assignments serialized as an iCalendar document. An unknown token maps to
// ErrNotFound without revealing whether any user exists.
func (s *CalendarService) Feed(ctx context.Context, token string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("CalendarService is nil")
	}
	if token == "" {
		return "", ErrNotFound
	}

	user, err := s.users.GetUserByCalendarToken(ctx, token)
	if err != nil {
		return "", mapRepoError(err)
	}

	entries, err := s.entriesForUser(ctx, user.ID)
	if err != nil {
		return "", err
	}

	stamp := s.now().UTC()
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	for _, entry := range entries {
		event := cal.AddEvent(entry.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(entry.Start)
		event.SetEndAt(entry.End)
		event.SetSummary(entry.Title)
		if entry.Location != "" {
			event.SetLocation(entry.Location)
		}
		if entry.Description != "" {
			event.SetDescription(entry.Description)
		}
	}
	return cal.Serialize(), nil
}

// Entries returns the caller's confirmed assignments as plain calendar
// entries, UTC normalized, for consumers that render their own format.
func (s *CalendarService) Entries(ctx context.Context, principal Principal) ([]CalendarEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("CalendarService is nil")
	}
	return s.entriesForUser(ctx, principal.UserID)
}

// RotateToken replaces the caller's calendar token, invalidating any feed
// URL that was previously shared.
func (s *CalendarService) RotateToken(ctx context.Context, principal Principal) (string, error) {
	if s == nil {
		return "", fmt.Errorf("CalendarService is nil")
	}

	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return "", mapRepoError(err)
	}

	user.CalendarToken = s.idGenerator()
	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "calendar", "rotate_token").InfoContext(ctx,
		"calendar token rotated", "user_id", user.ID)
	return user.CalendarToken, nil
}

func (s *CalendarService) entriesForUser(ctx context.Context, userID string) ([]CalendarEntry, error) {
	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{
		UserID: userID,
		Status: string(AssignmentConfirmed),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0, len(assignments))
	for _, assignment := range assignments {
		shift, err := s.events.GetSubShift(ctx, assignment.SubShiftID)
		if err != nil {
			// The shift may have been removed between listing and lookup.
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}
		event, err := s.events.GetEvent(ctx, shift.EventID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}

		entry := CalendarEntry{
			UID:         fmt.Sprintf("shift-%s@volunteer-coordinator", assignment.ID),
			Title:       fmt.Sprintf("%s - %s", event.Title, shift.RoleName),
			Start:       shift.Start.UTC(),
			End:         shift.End.UTC(),
			Description: fmt.Sprintf("Volunteer shift: %s", shift.RoleName),
		}
		if event.Location != nil {
			entry.Location = *event.Location
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
