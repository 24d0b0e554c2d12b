package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

var (
	userCounter       uint64
	eventCounter      uint64
	subShiftCounter   uint64
	assignmentCounter uint64
	swapCounter       uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// NewUser materialises a deterministic user record. Overrides mutate the
// record before it is returned.
func NewUser(overrides ...func(*persistence.User)) persistence.User {
	n := atomic.AddUint64(&userCounter, 1)
	user := persistence.User{
		ID:            fmt.Sprintf("user-%d", n),
		Email:         fmt.Sprintf("volunteer%d@example.org", n),
		FullName:      fmt.Sprintf("Volunteer %d", n),
		Role:          "volunteer",
		CalendarToken: fmt.Sprintf("feed-token-%d", n),
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, override := range overrides {
		override(&user)
	}
	return user
}

// NewEvent materialises a deterministic event record spanning four hours
// from the reference time.
func NewEvent(overrides ...func(*persistence.Event)) persistence.Event {
	n := atomic.AddUint64(&eventCounter, 1)
	event := persistence.Event{
		ID:        fmt.Sprintf("event-%d", n),
		Title:     fmt.Sprintf("Community Event %d", n),
		Start:     referenceTime.Add(24 * time.Hour),
		End:       referenceTime.Add(28 * time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, override := range overrides {
		override(&event)
	}
	return event
}

// NewSubShift materialises a deterministic sub-shift attached to eventID.
func NewSubShift(eventID string, overrides ...func(*persistence.SubShift)) persistence.SubShift {
	n := atomic.AddUint64(&subShiftCounter, 1)
	shift := persistence.SubShift{
		ID:        fmt.Sprintf("shift-%d", n),
		EventID:   eventID,
		RoleName:  fmt.Sprintf("Role %d", n),
		Start:     referenceTime.Add(24 * time.Hour),
		End:       referenceTime.Add(26 * time.Hour),
		Capacity:  3,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, override := range overrides {
		override(&shift)
	}
	return shift
}

// NewAssignment materialises a confirmed assignment binding userID to subShiftID.
func NewAssignment(subShiftID, userID string, overrides ...func(*persistence.ShiftAssignment)) persistence.ShiftAssignment {
	n := atomic.AddUint64(&assignmentCounter, 1)
	assignment := persistence.ShiftAssignment{
		ID:         fmt.Sprintf("assignment-%d", n),
		SubShiftID: subShiftID,
		UserID:     userID,
		Status:     "confirmed",
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, override := range overrides {
		override(&assignment)
	}
	return assignment
}

// NewSwap materialises an open swap request for assignmentID raised by requesterID.
func NewSwap(assignmentID, requesterID string, overrides ...func(*persistence.SwapRequest)) persistence.SwapRequest {
	n := atomic.AddUint64(&swapCounter, 1)
	swap := persistence.SwapRequest{
		ID:           fmt.Sprintf("swap-%d", n),
		AssignmentID: assignmentID,
		RequesterID:  requesterID,
		Status:       "open",
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, override := range overrides {
		override(&swap)
	}
	return swap
}
