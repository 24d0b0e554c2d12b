package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// EventService orchestrates validation and persistence for events and their
// sub-shifts. Sub-shift identity is preserved across edits so existing
// assignments are never silently orphaned; removing a sub-shift that still
// carries live assignments requires an explicit force flag.
type EventService struct {
	events      persistence.EventRepository
	assignments persistence.AssignmentRepository
	ledger      *CapacityLedger
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(
	events persistence.EventRepository,
	assignments persistence.AssignmentRepository,
	ledger *CapacityLedger,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		assignments: assignments,
		ledger:      ledger,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Create validates and persists a new event with its sub-shifts.
func (s *EventService) Create(ctx context.Context, params CreateEventParams) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if err := requireOrganizer(params.Principal); err != nil {
		return Event{}, err
	}

	input := params.Input
	vErr := &ValidationError{}
	validateEventCore(input, vErr)
	if vErr.HasErrors() {
		return Event{}, vErr
	}

	createdAt := s.now()
	event := persistence.Event{
		ID:        s.idGenerator(),
		Title:     strings.TrimSpace(input.Title),
		Start:     input.Start,
		End:       input.End,
		Location:  input.Location,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	subShifts := make([]persistence.SubShift, 0, len(input.SubShifts))
	for _, shiftInput := range input.SubShifts {
		subShifts = append(subShifts, persistence.SubShift{
			ID:        s.idGenerator(),
			EventID:   event.ID,
			RoleName:  strings.TrimSpace(shiftInput.RoleName),
			Start:     shiftInput.Start,
			End:       shiftInput.End,
			Capacity:  shiftInput.Capacity,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}

	if err := s.events.CreateEvent(ctx, event, subShifts); err != nil {
		return Event{}, mapRepoError(err)
	}

	return s.Get(ctx, event.ID)
}

// Update applies an edit to an event. Sub-shift inputs carrying an ID update
// the existing slot in place; inputs without an ID create new slots;
// existing slots absent from the input are removed. Removal of slots with
// live assignments is rejected with the affected assignment IDs unless the
// caller re-confirms with Force.
func (s *EventService) Update(ctx context.Context, params UpdateEventParams) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if err := requireOrganizer(params.Principal); err != nil {
		return Event{}, err
	}

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return Event{}, mapRepoError(err)
	}

	input := params.Input
	vErr := &ValidationError{}
	validateEventCore(input, vErr)
	if vErr.HasErrors() {
		return Event{}, vErr
	}

	currentShifts, err := s.events.ListSubShiftsForEvents(ctx, []string{existing.ID})
	if err != nil {
		return Event{}, err
	}

	kept := make(map[string]bool, len(input.SubShifts))
	for _, shiftInput := range input.SubShifts {
		if shiftInput.ID != "" {
			kept[shiftInput.ID] = true
		}
	}

	removedIDs := make([]string, 0)
	for _, shift := range currentShifts {
		if !kept[shift.ID] {
			removedIDs = append(removedIDs, shift.ID)
		}
	}

	if len(removedIDs) > 0 && !params.Force {
		affected, err := s.affectedAssignments(ctx, removedIDs)
		if err != nil {
			return Event{}, err
		}
		if len(affected) > 0 {
			return Event{}, &ConflictError{
				Code:        ConflictAssignmentsExist,
				Message:     "removing these sub-shifts deletes live assignments; re-submit with force to confirm",
				AffectedIDs: affected,
			}
		}
	}

	updatedAt := s.now()
	event := existing
	event.Title = strings.TrimSpace(input.Title)
	event.Start = input.Start
	event.End = input.End
	event.Location = input.Location
	event.UpdatedAt = updatedAt

	subShifts := make([]persistence.SubShift, 0, len(input.SubShifts))
	for _, shiftInput := range input.SubShifts {
		id := shiftInput.ID
		if id == "" {
			id = s.idGenerator()
		}
		subShifts = append(subShifts, persistence.SubShift{
			ID:        id,
			EventID:   event.ID,
			RoleName:  strings.TrimSpace(shiftInput.RoleName),
			Start:     shiftInput.Start,
			End:       shiftInput.End,
			Capacity:  shiftInput.Capacity,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		})
	}

	if err := s.events.UpdateEvent(ctx, event, subShifts, removedIDs); err != nil {
		return Event{}, mapRepoError(err)
	}

	return s.Get(ctx, event.ID)
}

// Delete removes an event and cascades to its sub-shifts and assignments.
// When live assignments exist, the caller must re-confirm with Force; the
// rejection lists the affected assignment IDs.
func (s *EventService) Delete(ctx context.Context, params DeleteEventParams) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if err := requireOrganizer(params.Principal); err != nil {
		return err
	}

	if _, err := s.events.GetEvent(ctx, params.EventID); err != nil {
		return mapRepoError(err)
	}

	if !params.Force {
		shifts, err := s.events.ListSubShiftsForEvents(ctx, []string{params.EventID})
		if err != nil {
			return err
		}
		shiftIDs := make([]string, 0, len(shifts))
		for _, shift := range shifts {
			shiftIDs = append(shiftIDs, shift.ID)
		}
		affected, err := s.affectedAssignments(ctx, shiftIDs)
		if err != nil {
			return err
		}
		if len(affected) > 0 {
			return &ConflictError{
				Code:        ConflictAssignmentsExist,
				Message:     "event has live assignments; re-submit with force to confirm",
				AffectedIDs: affected,
			}
		}
	}

	return mapRepoError(s.events.DeleteEvent(ctx, params.EventID))
}

// Get returns one event with its sub-shifts and capacity counts.
func (s *EventService) Get(ctx context.Context, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapRepoError(err)
	}

	enriched, err := s.enrichEvents(ctx, []persistence.Event{event})
	if err != nil {
		return Event{}, err
	}
	return enriched[0], nil
}

// List returns all events with their sub-shifts and capacity counts, ordered
// by start time. Open to every authenticated caller.
func (s *EventService) List(ctx context.Context, filter persistence.EventFilter) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.enrichEvents(ctx, events)
}

func (s *EventService) enrichEvents(ctx context.Context, events []persistence.Event) ([]Event, error) {
	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
	}

	shifts, err := s.events.ListSubShiftsForEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	shiftIDs := make([]string, 0, len(shifts))
	for _, shift := range shifts {
		shiftIDs = append(shiftIDs, shift.ID)
	}
	counts, err := s.ledger.SubShiftCounts(ctx, shiftIDs)
	if err != nil {
		return nil, err
	}

	// Sub-shifts arrive ordered by (start, end); group them per event
	// preserving that order.
	shiftsByEvent := make(map[string][]SubShift, len(events))
	for _, shift := range shifts {
		count := counts[shift.ID]
		shiftsByEvent[shift.EventID] = append(shiftsByEvent[shift.EventID], SubShift{
			ID:        shift.ID,
			EventID:   shift.EventID,
			RoleName:  shift.RoleName,
			Start:     shift.Start,
			End:       shift.End,
			Capacity:  shift.Capacity,
			Filled:    count.Filled,
			Available: count.Available,
		})
	}

	result := make([]Event, 0, len(events))
	for _, event := range events {
		enriched := Event{
			ID:        event.ID,
			Title:     event.Title,
			Start:     event.Start,
			End:       event.End,
			Location:  event.Location,
			SubShifts: shiftsByEvent[event.ID],
			CreatedAt: event.CreatedAt,
			UpdatedAt: event.UpdatedAt,
		}
		for _, shift := range enriched.SubShifts {
			enriched.Capacity += shift.Capacity
			enriched.Filled += shift.Filled
		}
		result = append(result, enriched)
	}
	return result, nil
}

func (s *EventService) affectedAssignments(ctx context.Context, subShiftIDs []string) ([]string, error) {
	if len(subShiftIDs) == 0 {
		return nil, nil
	}
	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{SubShiftIDs: subShiftIDs})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.ID)
	}
	return ids, nil
}

func validateEventCore(input EventInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
	}

	for i, shift := range input.SubShifts {
		prefix := fmt.Sprintf("sub_shifts[%d].", i)
		if strings.TrimSpace(shift.RoleName) == "" {
			vErr.add(prefix+"role_name", "role name is required")
		}
		if shift.Start.IsZero() || shift.End.IsZero() || !shift.Start.Before(shift.End) {
			vErr.add(prefix+"time", "start must be before end")
		}
		if shift.Capacity < 0 {
			vErr.add(prefix+"capacity", "capacity must be zero or greater")
		}
	}
}
