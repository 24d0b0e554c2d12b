package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// AssignmentService is the sole writer of assignment state. It enforces the
// no-duplicate-assignment and no-overcapacity invariants at write time; the
// storage layer backs both with its own constraints so concurrent writers
// cannot race past the checks.
type AssignmentService struct {
	assignments persistence.AssignmentRepository
	events      persistence.EventRepository
	users       persistence.UserRepository
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAssignmentService wires dependencies for assignment operations.
func NewAssignmentService(
	assignments persistence.AssignmentRepository,
	events persistence.EventRepository,
	users persistence.UserRepository,
	notifier Notifier,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *AssignmentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		assignments: assignments,
		events:      events,
		users:       users,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Create signs a user onto a sub-shift. Volunteers may only sign up
// themselves; organizer-level callers may assign anyone. The capacity
// re-check and the insert run in one storage transaction, and the
// (sub_shift, user) uniqueness is enforced by the storage engine.
func (s *AssignmentService) Create(ctx context.Context, params CreateAssignmentParams) (ShiftAssignment, error) {
	if s == nil {
		return ShiftAssignment{}, fmt.Errorf("AssignmentService is nil")
	}

	principal := params.Principal
	userID := params.UserID
	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID {
		if err := requireOrganizer(principal); err != nil {
			return ShiftAssignment{}, err
		}
	}

	vErr := &ValidationError{}
	if params.SubShiftID == "" {
		vErr.add("sub_shift_id", "sub-shift id is required")
	}
	if userID == "" {
		vErr.add("user_id", "user id is required")
	}
	if vErr.HasErrors() {
		return ShiftAssignment{}, vErr
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}

	createdAt := s.now()
	assignment := persistence.ShiftAssignment{
		ID:         s.idGenerator(),
		SubShiftID: params.SubShiftID,
		UserID:     userID,
		Status:     string(AssignmentConfirmed),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}

	if err := s.assignments.CreateAssignment(ctx, assignment); err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}

	s.notifyAssignment(ctx, userID, assignment.ID, params.SubShiftID, "New Shift Assigned!")

	return toAssignment(assignment), nil
}

// Reassign moves an assignment to a new holder and confirms it. Reserved for
// organizer-level callers; the swap state machine goes through here as well.
func (s *AssignmentService) Reassign(ctx context.Context, principal Principal, assignmentID, newUserID string) (ShiftAssignment, error) {
	if s == nil {
		return ShiftAssignment{}, fmt.Errorf("AssignmentService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return ShiftAssignment{}, err
	}
	if newUserID == "" {
		vErr := &ValidationError{}
		vErr.add("user_id", "user id is required")
		return ShiftAssignment{}, vErr
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}

	if _, err := s.users.GetUser(ctx, newUserID); err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}

	existing.UserID = newUserID
	existing.Status = string(AssignmentConfirmed)
	existing.UpdatedAt = s.now()

	if err := s.assignments.UpdateAssignment(ctx, existing); err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}

	s.notifyAssignment(ctx, newUserID, existing.ID, existing.SubShiftID, "New Shift Assigned!")

	return toAssignment(existing), nil
}

// Delete removes an assignment, freeing its slot. Any swap request attached
// to it is removed by cascade. Permitted to organizer-level callers and to
// the assignment holder.
func (s *AssignmentService) Delete(ctx context.Context, principal Principal, assignmentID string) error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return mapRepoError(err)
	}

	if existing.UserID != principal.UserID {
		if err := requireOrganizer(principal); err != nil {
			return err
		}
	}

	return mapRepoError(s.assignments.DeleteAssignment(ctx, assignmentID))
}

// SetStatus updates an assignment's status. Internal operation used by the
// swap state machine; not exposed over the transport.
func (s *AssignmentService) SetStatus(ctx context.Context, assignmentID string, status AssignmentStatus) error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}
	switch status {
	case AssignmentPending, AssignmentConfirmed:
	default:
		vErr := &ValidationError{}
		vErr.add("status", "status must be pending or confirmed")
		return vErr
	}

	existing, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return mapRepoError(err)
	}

	existing.Status = string(status)
	existing.UpdatedAt = s.now()
	return mapRepoError(s.assignments.UpdateAssignment(ctx, existing))
}

// Get retrieves an assignment by ID.
func (s *AssignmentService) Get(ctx context.Context, assignmentID string) (ShiftAssignment, error) {
	if s == nil {
		return ShiftAssignment{}, fmt.Errorf("AssignmentService is nil")
	}
	assignment, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return ShiftAssignment{}, mapRepoError(err)
	}
	return toAssignment(assignment), nil
}

// ListForUser returns a user's assignments enriched with shift and event
// display data, ordered by shift start. Volunteers may only list their own.
func (s *AssignmentService) ListForUser(ctx context.Context, principal Principal, userID string) ([]AssignmentDetail, error) {
	if s == nil {
		return nil, fmt.Errorf("AssignmentService is nil")
	}
	if userID != principal.UserID {
		if err := requireOrganizer(principal); err != nil {
			return nil, err
		}
	}

	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	details := make([]AssignmentDetail, 0, len(assignments))
	for _, assignment := range assignments {
		detail, err := s.enrich(ctx, assignment)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *AssignmentService) enrich(ctx context.Context, assignment persistence.ShiftAssignment) (AssignmentDetail, error) {
	shift, err := s.events.GetSubShift(ctx, assignment.SubShiftID)
	if err != nil {
		return AssignmentDetail{}, mapRepoError(err)
	}
	event, err := s.events.GetEvent(ctx, shift.EventID)
	if err != nil {
		return AssignmentDetail{}, mapRepoError(err)
	}
	return AssignmentDetail{
		ShiftAssignment: toAssignment(assignment),
		RoleName:        shift.RoleName,
		ShiftStart:      shift.Start,
		ShiftEnd:        shift.End,
		EventTitle:      event.Title,
		EventID:         event.ID,
		Location:        event.Location,
	}, nil
}

// notifyAssignment fires a best-effort assignment notification. Lookup
// failures only degrade the notification body; they never fail the write.
func (s *AssignmentService) notifyAssignment(ctx context.Context, userID, assignmentID, subShiftID, title string) {
	logger := serviceLogger(ctx, s.logger, "assignment", "notify", "assignment_id", assignmentID)

	body := "You have been assigned a shift."
	data := map[string]string{"assignment_id": assignmentID}

	if shift, err := s.events.GetSubShift(ctx, subShiftID); err == nil {
		if event, err := s.events.GetEvent(ctx, shift.EventID); err == nil {
			body = fmt.Sprintf("%s - %s on %s", event.Title, shift.RoleName, shift.Start.UTC().Format("Jan 2, 15:04 MST"))
			data["event"] = event.Title
			data["role"] = shift.RoleName
			data["time"] = shift.Start.UTC().Format(time.RFC3339)
			if event.Location != nil {
				data["location"] = *event.Location
			}
		}
	} else {
		logger.WarnContext(ctx, "could not enrich assignment notification", "error", err)
	}

	s.notifier.Notify(userID, Notification{
		Title: title,
		Body:  body,
		Tag:   "shift-assignment-" + assignmentID,
		Data:  data,
	})
}
