package application

import (
	"context"
	"fmt"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// CapacityLedger answers slot usage queries for sub-shifts and events. It is
// a pure read-side aggregation over the assignment records: every live
// assignment counts as filled regardless of status, so a shift whose holder
// has an open swap request does not advertise a free slot.
type CapacityLedger struct {
	events      persistence.EventRepository
	assignments persistence.AssignmentRepository
}

// NewCapacityLedger wires dependencies for capacity queries.
func NewCapacityLedger(events persistence.EventRepository, assignments persistence.AssignmentRepository) *CapacityLedger {
	return &CapacityLedger{events: events, assignments: assignments}
}

// SubShiftCounts returns capacity usage for each requested sub-shift.
func (l *CapacityLedger) SubShiftCounts(ctx context.Context, subShiftIDs []string) (map[string]CapacityCount, error) {
	if l == nil {
		return nil, fmt.Errorf("CapacityLedger is nil")
	}

	counts := make(map[string]CapacityCount, len(subShiftIDs))
	if len(subShiftIDs) == 0 {
		return counts, nil
	}

	filled, err := l.assignments.CountBySubShift(ctx, subShiftIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range subShiftIDs {
		shift, err := l.events.GetSubShift(ctx, id)
		if err != nil {
			return nil, mapRepoError(err)
		}
		counts[id] = newCapacityCount(shift.Capacity, filled[id])
	}
	return counts, nil
}

// EventCounts returns capacity usage aggregated across each event's sub-shifts.
func (l *CapacityLedger) EventCounts(ctx context.Context, eventIDs []string) (map[string]CapacityCount, error) {
	if l == nil {
		return nil, fmt.Errorf("CapacityLedger is nil")
	}

	counts := make(map[string]CapacityCount, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	shifts, err := l.events.ListSubShiftsForEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	shiftIDs := make([]string, 0, len(shifts))
	for _, shift := range shifts {
		shiftIDs = append(shiftIDs, shift.ID)
	}

	filled, err := l.assignments.CountBySubShift(ctx, shiftIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range eventIDs {
		counts[id] = CapacityCount{}
	}
	for _, shift := range shifts {
		count := counts[shift.EventID]
		count.Capacity += shift.Capacity
		count.Filled += filled[shift.ID]
		counts[shift.EventID] = count
	}
	for id, count := range counts {
		count.Available = max(count.Capacity-count.Filled, 0)
		counts[id] = count
	}
	return counts, nil
}

func newCapacityCount(capacity, filled int) CapacityCount {
	return CapacityCount{
		Capacity:  capacity,
		Filled:    filled,
		Available: max(capacity-filled, 0),
	}
}
