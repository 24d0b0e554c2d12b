package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// ReminderService scans for confirmed assignments whose shifts start exactly
// one reminder lead time from now and emits a notification for each, once.
//
// The service owns no clock or loop: an external trigger (cron, HTTP) calls
// Scan. The scan window width equals the scan period, so each qualifying
// shift is matched by exactly one scan cycle. A skipped cycle silently
// misses its reminders; overlapping cycles are de-duplicated by the
// delivery tag.
type ReminderService struct {
	prefs       persistence.PreferenceRepository
	assignments persistence.AssignmentRepository
	events      persistence.EventRepository
	notifier    Notifier
	granularity time.Duration
	now         func() time.Time
	sent        *sentCache
	logger      *slog.Logger
}

// NewReminderService wires dependencies for reminder scanning. granularity
// must match the trigger period; it defaults to one minute.
func NewReminderService(
	prefs persistence.PreferenceRepository,
	assignments persistence.AssignmentRepository,
	events persistence.EventRepository,
	notifier Notifier,
	granularity time.Duration,
	now func() time.Time,
	logger *slog.Logger,
) *ReminderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if granularity <= 0 {
		granularity = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		prefs:       prefs,
		assignments: assignments,
		events:      events,
		notifier:    notifier,
		granularity: granularity,
		now:         now,
		sent:        newSentCache(5*granularity, 0, now),
		logger:      defaultLogger(logger),
	}
}

// Scan runs one reminder cycle and returns the number of reminders emitted.
// Per-user failures are logged and skipped so one bad record cannot starve
// the remaining users of their reminders.
func (s *ReminderService) Scan(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("ReminderService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "reminder", "scan")
	reference := s.now()

	prefs, err := s.prefs.ListEnabledPreferences(ctx)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, pref := range prefs {
		count, err := s.scanUser(ctx, reference, toPreference(pref))
		if err != nil {
			logger.ErrorContext(ctx, "reminder scan failed for user", "user_id", pref.UserID, "error", err)
			continue
		}
		emitted += count
	}

	logger.InfoContext(ctx, "reminder scan completed", "emitted", emitted, "users", len(prefs))
	return emitted, nil
}

func (s *ReminderService) scanUser(ctx context.Context, reference time.Time, pref NotificationPreference) (int, error) {
	lead := pref.LeadMinutes
	if lead <= 0 {
		lead = DefaultPreference(pref.UserID).LeadMinutes
	}

	windowStart := reference.Add(time.Duration(lead) * time.Minute)
	windowEnd := windowStart.Add(s.granularity)

	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{
		UserID:       pref.UserID,
		Status:       string(AssignmentConfirmed),
		StartsAfter:  &windowStart,
		StartsBefore: &windowEnd,
	})
	if err != nil {
		return 0, err
	}

	location := s.loadLocation(ctx, pref)

	emitted := 0
	for _, assignment := range assignments {
		shift, err := s.events.GetSubShift(ctx, assignment.SubShiftID)
		if err != nil {
			return emitted, mapRepoError(err)
		}
		event, err := s.events.GetEvent(ctx, shift.EventID)
		if err != nil {
			return emitted, mapRepoError(err)
		}

		// The tag is stable per (assignment, window): overlapping scans
		// compute the same tag and only the first send goes through.
		window := windowStart.Truncate(s.granularity)
		tag := fmt.Sprintf("shift-reminder-%s-%d", assignment.ID, window.Unix())
		if !s.sent.MarkSent(tag) {
			continue
		}

		localStart := shift.Start.In(location).Format("Jan 2, 15:04")
		body := fmt.Sprintf("%s - %s at %s", event.Title, shift.RoleName, localStart)
		data := map[string]string{
			"assignment_id": assignment.ID,
			"event":         event.Title,
			"role":          shift.RoleName,
			"time":          shift.Start.UTC().Format(time.RFC3339),
		}
		if event.Location != nil {
			data["location"] = *event.Location
			body += " (" + *event.Location + ")"
		}

		s.notifier.Notify(pref.UserID, Notification{
			Title: "Shift Reminder",
			Body:  body,
			Tag:   tag,
			Data:  data,
		})
		emitted++
	}
	return emitted, nil
}

func (s *ReminderService) loadLocation(ctx context.Context, pref NotificationPreference) *time.Location {
	if pref.Timezone == "" {
		return time.UTC
	}
	location, err := time.LoadLocation(pref.Timezone)
	if err != nil {
		serviceLogger(ctx, s.logger, "reminder", "scan").WarnContext(ctx,
			"invalid timezone preference, falling back to UTC", "user_id", pref.UserID, "timezone", pref.Timezone)
		return time.UTC
	}
	return location
}
