package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// SwapService models a volunteer's request to be relieved of a shift.
//
// States: open -> accepted (via Accept) or open -> cancelled (via Decline).
// OrganizerCancel is not a transition: it deletes the underlying assignment
// and the request ceases to exist through the cascade. Accepted and
// cancelled are terminal.
type SwapService struct {
	swaps       persistence.SwapRepository
	assignments persistence.AssignmentRepository
	events      persistence.EventRepository
	users       persistence.UserRepository
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	// timeout > 0 makes requests older than the window unacceptable.
	// Zero disables expiry; requests then stay open until acted upon.
	timeout time.Duration
	logger  *slog.Logger
}

// NewSwapService wires dependencies for swap request operations.
func NewSwapService(
	swaps persistence.SwapRepository,
	assignments persistence.AssignmentRepository,
	events persistence.EventRepository,
	users persistence.UserRepository,
	notifier Notifier,
	idGenerator func() string,
	now func() time.Time,
	timeout time.Duration,
	logger *slog.Logger,
) *SwapService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SwapService{
		swaps:       swaps,
		assignments: assignments,
		events:      events,
		users:       users,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		timeout:     timeout,
		logger:      defaultLogger(logger),
	}
}

// Open creates a swap request for an assignment held by the caller. The
// assignment is flipped to pending in the same storage transaction, which
// signals "up for grabs" without releasing the capacity slot.
func (s *SwapService) Open(ctx context.Context, principal Principal, assignmentID string) (SwapRequest, error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}

	assignment, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}
	if assignment.UserID != principal.UserID {
		return SwapRequest{}, ErrForbidden
	}
	if AssignmentStatus(assignment.Status) != AssignmentConfirmed {
		return SwapRequest{}, newConflict(ConflictSwapAlreadyOpen, "a swap request is already open for this assignment")
	}

	createdAt := s.now()
	swap := persistence.SwapRequest{
		ID:           s.idGenerator(),
		AssignmentID: assignmentID,
		RequesterID:  principal.UserID,
		Status:       string(SwapOpen),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := s.swaps.CreateSwap(ctx, swap); err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			return SwapRequest{}, newConflict(ConflictSwapAlreadyOpen, "a swap request is already open for this assignment")
		}
		return SwapRequest{}, mapRepoError(err)
	}
	return toSwapRequest(swap), nil
}

// Accept resolves an open request by handing the assignment to
// acceptedByID. The reassignment and the request status change are applied
// in one storage transaction: no observer ever sees one without the other.
func (s *SwapService) Accept(ctx context.Context, principal Principal, requestID, acceptedByID string) (SwapRequest, error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return SwapRequest{}, err
	}
	if acceptedByID == "" {
		vErr := &ValidationError{}
		vErr.add("accepted_by_id", "accepted_by_id is required")
		return SwapRequest{}, vErr
	}

	swap, err := s.swaps.GetSwap(ctx, requestID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}
	if SwapStatus(swap.Status) != SwapOpen {
		return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request is not open")
	}
	if s.timeout > 0 && s.now().Sub(swap.CreatedAt) > s.timeout {
		return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request has expired")
	}

	if _, err := s.users.GetUser(ctx, acceptedByID); err != nil {
		return SwapRequest{}, mapRepoError(err)
	}

	assignment, err := s.assignments.GetAssignment(ctx, swap.AssignmentID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}

	// Pre-check for readability of the error; the storage unique
	// constraint rejects the race the pre-check cannot see.
	holders, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{
		UserID:      acceptedByID,
		SubShiftIDs: []string{assignment.SubShiftID},
	})
	if err != nil {
		return SwapRequest{}, err
	}
	if len(holders) > 0 {
		return SwapRequest{}, newConflict(ConflictAlreadyAssigned, "user already holds an assignment on this shift")
	}

	if err := s.swaps.AcceptSwap(ctx, requestID, acceptedByID, s.now()); err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request is not open")
		}
		return SwapRequest{}, mapRepoError(err)
	}

	s.notifyNewHolder(ctx, acceptedByID, assignment.ID, assignment.SubShiftID)

	accepted, err := s.swaps.GetSwap(ctx, requestID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}
	return toSwapRequest(accepted), nil
}

// Decline resolves an open request by cancelling it; the original holder
// keeps the shift and the assignment reverts to confirmed. Declining an
// already cancelled request is a no-op; an accepted request is immutable.
func (s *SwapService) Decline(ctx context.Context, principal Principal, requestID string) (SwapRequest, error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return SwapRequest{}, err
	}

	swap, err := s.swaps.GetSwap(ctx, requestID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}

	switch SwapStatus(swap.Status) {
	case SwapCancelled:
		return toSwapRequest(swap), nil
	case SwapAccepted:
		return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request is already accepted")
	case SwapOpen:
	default:
		return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request is not open")
	}

	// The storage transaction re-checks that the request is still open, so
	// an accept committing after the read above cannot be overwritten.
	if err := s.swaps.DeclineSwap(ctx, requestID, s.now()); err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			return SwapRequest{}, newConflict(ConflictSwapNotOpen, "swap request is not open")
		}
		return SwapRequest{}, mapRepoError(err)
	}

	declined, err := s.swaps.GetSwap(ctx, requestID)
	if err != nil {
		return SwapRequest{}, mapRepoError(err)
	}
	return toSwapRequest(declined), nil
}

// OrganizerCancel deletes the underlying assignment outright, freeing the
// slot for anyone. The swap request row disappears through the cascade.
// Irreversible; calling it again reports not found.
func (s *SwapService) OrganizerCancel(ctx context.Context, principal Principal, requestID string) error {
	if s == nil {
		return fmt.Errorf("SwapService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return err
	}

	swap, err := s.swaps.GetSwap(ctx, requestID)
	if err != nil {
		return mapRepoError(err)
	}
	if SwapStatus(swap.Status) == SwapAccepted {
		return newConflict(ConflictSwapNotOpen, "swap request is already accepted")
	}

	return mapRepoError(s.assignments.DeleteAssignment(ctx, swap.AssignmentID))
}

// ListOpen returns open swap requests enriched with requester, role, time,
// and event display data, newest first.
func (s *SwapService) ListOpen(ctx context.Context, principal Principal) ([]SwapListing, error) {
	if s == nil {
		return nil, fmt.Errorf("SwapService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return nil, err
	}

	swaps, err := s.swaps.ListOpenSwaps(ctx)
	if err != nil {
		return nil, err
	}

	logger := serviceLogger(ctx, s.logger, "swap", "list_open")
	listings := make([]SwapListing, 0, len(swaps))
	for _, swap := range swaps {
		listing := SwapListing{SwapRequest: toSwapRequest(swap)}

		if requester, err := s.users.GetUser(ctx, swap.RequesterID); err == nil {
			listing.RequesterName = requester.FullName
			listing.RequesterEmail = requester.Email
		}

		assignment, err := s.assignments.GetAssignment(ctx, swap.AssignmentID)
		if err != nil {
			// A cascade may have removed the assignment between queries.
			logger.WarnContext(ctx, "open swap without assignment", "swap_id", swap.ID, "error", err)
			continue
		}
		if shift, err := s.events.GetSubShift(ctx, assignment.SubShiftID); err == nil {
			listing.RoleName = shift.RoleName
			listing.ShiftStart = shift.Start
			listing.ShiftEnd = shift.End
			if event, err := s.events.GetEvent(ctx, shift.EventID); err == nil {
				listing.EventTitle = event.Title
			}
		}

		listings = append(listings, listing)
	}
	return listings, nil
}

func (s *SwapService) notifyNewHolder(ctx context.Context, userID, assignmentID, subShiftID string) {
	logger := serviceLogger(ctx, s.logger, "swap", "notify", "assignment_id", assignmentID)

	body := "You have been assigned a shift via swap."
	data := map[string]string{"assignment_id": assignmentID}

	if shift, err := s.events.GetSubShift(ctx, subShiftID); err == nil {
		if event, err := s.events.GetEvent(ctx, shift.EventID); err == nil {
			body = fmt.Sprintf("%s - %s on %s", event.Title, shift.RoleName, shift.Start.UTC().Format("Jan 2, 15:04 MST"))
			data["event"] = event.Title
			data["role"] = shift.RoleName
		}
	} else {
		logger.WarnContext(ctx, "could not enrich swap notification", "error", err)
	}

	s.notifier.Notify(userID, Notification{
		Title: "New Shift Assigned!",
		Body:  body,
		Tag:   "shift-assignment-" + assignmentID,
		Data:  data,
	})
}
