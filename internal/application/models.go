package application

import "time"

// AssignmentStatus is the closed set of shift assignment states.
type AssignmentStatus string

const (
	// AssignmentPending marks an assignment whose holder has an open swap
	// request. A pending assignment still occupies its capacity slot.
	AssignmentPending AssignmentStatus = "pending"
	// AssignmentConfirmed marks a settled assignment.
	AssignmentConfirmed AssignmentStatus = "confirmed"
)

// SwapStatus is the closed set of swap request states.
type SwapStatus string

const (
	SwapOpen      SwapStatus = "open"
	SwapAccepted  SwapStatus = "accepted"
	SwapCancelled SwapStatus = "cancelled"
)

// User represents an account exposed by the application services.
type User struct {
	ID            string
	Email         string
	FullName      string
	Role          Role
	PhoneNumber   *string
	CalendarToken string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event represents a scheduled activity containing sub-shifts.
type Event struct {
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Location  *string
	SubShifts []SubShift
	Capacity  int
	Filled    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubShift represents a role-specific work slot within an event, enriched
// with its current capacity counts for listing consumers.
type SubShift struct {
	ID        string
	EventID   string
	RoleName  string
	Start     time.Time
	End       time.Time
	Capacity  int
	Filled    int
	Available int
}

// ShiftAssignment binds one user to one sub-shift.
type ShiftAssignment struct {
	ID         string
	SubShiftID string
	UserID     string
	Status     AssignmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SwapRequest records a holder's request to be relieved of an assignment.
type SwapRequest struct {
	ID           string
	AssignmentID string
	RequesterID  string
	Status       SwapStatus
	AcceptedByID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SwapListing is an open swap request enriched with display data for the
// organizer surface.
type SwapListing struct {
	SwapRequest
	RequesterName  string
	RequesterEmail string
	RoleName       string
	ShiftStart     time.Time
	ShiftEnd       time.Time
	EventTitle     string
}

// NotificationPreference stores per-user reminder settings.
type NotificationPreference struct {
	UserID      string
	Enabled     bool
	LeadMinutes int
	Timezone    string
}

// DefaultPreference returns the settings applied when a user never saved any.
func DefaultPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:      userID,
		Enabled:     true,
		LeadMinutes: 1440,
		Timezone:    "UTC",
	}
}

// CapacityCount reports slot usage for a sub-shift or an event aggregate.
type CapacityCount struct {
	Capacity  int
	Filled    int
	Available int
}

// SubShiftInput captures caller provided sub-shift fields. ID is set when an
// existing sub-shift is being edited, preserving its identity.
type SubShiftInput struct {
	ID       string
	RoleName string
	Start    time.Time
	End      time.Time
	Capacity int
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title     string
	Start     time.Time
	End       time.Time
	Location  *string
	SubShifts []SubShiftInput
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event. Force allows
// removal of sub-shifts that still carry live assignments.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
	Force     bool
}

// DeleteEventParams wraps the data required to delete an event.
type DeleteEventParams struct {
	Principal Principal
	EventID   string
	Force     bool
}

// CreateAssignmentParams wraps the data required to sign a user onto a shift.
type CreateAssignmentParams struct {
	Principal  Principal
	SubShiftID string
	UserID     string
}

// AssignmentDetail is an assignment enriched with shift and event display data.
type AssignmentDetail struct {
	ShiftAssignment
	RoleName   string
	ShiftStart time.Time
	ShiftEnd   time.Time
	EventTitle string
	EventID    string
	Location   *string
}

// CalendarEntry is one confirmed assignment rendered for the calendar feed,
// timestamps normalized to UTC.
type CalendarEntry struct {
	UID         string
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
}

// VolunteerSummary is a directory row for the organizer surface.
type VolunteerSummary struct {
	User
	AssignmentCount int
	LastActive      *time.Time
}

// OverlapWarning flags two upcoming assignments whose shifts collide in
// time. Overlaps are allowed; organizers see them as advisory only.
type OverlapWarning struct {
	FirstAssignmentID  string
	SecondAssignmentID string
}

// VolunteerDetail is a volunteer with their assignment history split around now.
type VolunteerDetail struct {
	User
	Upcoming []AssignmentDetail
	Past     []AssignmentDetail
	Overlaps []OverlapWarning
}
