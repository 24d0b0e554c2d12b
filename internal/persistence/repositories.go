package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByCalendarToken(ctx context.Context, token string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// EventFilter narrows event queries.
type EventFilter struct {
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// EventRepository stores events and their sub-shifts.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, subShifts []SubShift) error
	UpdateEvent(ctx context.Context, event Event, subShifts []SubShift, removedSubShiftIDs []string) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetSubShift(ctx context.Context, id string) (SubShift, error)
	ListSubShiftsForEvents(ctx context.Context, eventIDs []string) ([]SubShift, error)
}

// AssignmentFilter narrows assignment queries.
type AssignmentFilter struct {
	UserID       string
	SubShiftIDs  []string
	Status       string
	StartsAfter  *time.Time
	StartsBefore *time.Time
}

// AssignmentRepository stores shift assignments.
//
// CreateAssignment must re-check the sub-shift capacity inside the same
// transaction that inserts the row, and the (sub_shift_id, user_id)
// uniqueness must be enforced by the storage engine itself so that
// concurrent sign-ups cannot slip past a pre-check.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment ShiftAssignment) error
	GetAssignment(ctx context.Context, id string) (ShiftAssignment, error)
	UpdateAssignment(ctx context.Context, assignment ShiftAssignment) error
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]ShiftAssignment, error)
	CountBySubShift(ctx context.Context, subShiftIDs []string) (map[string]int, error)
}

// SwapRepository stores swap requests. AcceptSwap and DeclineSwap apply
// their status transitions in one transaction, guarded on the request still
// being open; a request in any other state rolls back with
// ErrConstraintViolation. CreateSwap likewise only flips a confirmed
// assignment to pending, so one assignment can carry at most one open
// request.
type SwapRepository interface {
	CreateSwap(ctx context.Context, swap SwapRequest) error
	GetSwap(ctx context.Context, id string) (SwapRequest, error)
	ListOpenSwaps(ctx context.Context) ([]SwapRequest, error)
	AcceptSwap(ctx context.Context, swapID, acceptedByID string, updatedAt time.Time) error
	DeclineSwap(ctx context.Context, swapID string, updatedAt time.Time) error
}

// PreferenceRepository stores notification preferences and push subscriptions.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, userID string) (NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref NotificationPreference) error
	ListEnabledPreferences(ctx context.Context) ([]NotificationPreference, error)
	CreatePushSubscription(ctx context.Context, sub PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// CredentialRepository stores password hashes.
type CredentialRepository interface {
	GetCredential(ctx context.Context, userID string) (Credential, error)
	UpsertCredential(ctx context.Context, credential Credential) error
}
