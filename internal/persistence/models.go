package persistence

import "time"

// User represents an account in the coordinator domain.
type User struct {
	ID            string
	Email         string
	FullName      string
	Role          string
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
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubShift represents a role-specific, time-bounded work slot within an event.
type SubShift struct {
	ID        string
	EventID   string
	RoleName  string
	Start     time.Time
	End       time.Time
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShiftAssignment binds one user to one sub-shift.
type ShiftAssignment struct {
	ID         string
	SubShiftID string
	UserID     string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SwapRequest records a holder's request to be relieved of an assignment.
type SwapRequest struct {
	ID           string
	AssignmentID string
	RequesterID  string
	Status       string
	AcceptedByID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NotificationPreference stores per-user reminder settings.
type NotificationPreference struct {
	UserID      string
	Enabled     bool
	LeadMinutes int
	Timezone    string
	UpdatedAt   time.Time
}

// PushSubscription stores a Web Push endpoint registered by a user.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dhKey string
	AuthKey   string
	CreatedAt time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Credential stores the password hash attached to a user account.
type Credential struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}
