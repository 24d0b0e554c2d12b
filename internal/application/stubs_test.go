package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
	"github.com/example/volunteer-coordinator/internal/testfixtures"
)

// memoryStore is an in-memory stand-in for the storage layer. It reproduces
// the engine-enforced guarantees the services lean on: the capacity re-check
// and the (sub_shift, user) uniqueness both happen under one lock, exactly
// as the real store runs them in one serialized transaction.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]persistence.User
	credentials map[string]persistence.Credential
	sessions    map[string]persistence.Session
	events      map[string]persistence.Event
	subShifts   map[string]persistence.SubShift
	assignments map[string]persistence.ShiftAssignment
	swaps       map[string]persistence.SwapRequest
	prefs       map[string]persistence.NotificationPreference
	pushSubs    map[string]persistence.PushSubscription
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[string]persistence.User),
		credentials: make(map[string]persistence.Credential),
		sessions:    make(map[string]persistence.Session),
		events:      make(map[string]persistence.Event),
		subShifts:   make(map[string]persistence.SubShift),
		assignments: make(map[string]persistence.ShiftAssignment),
		swaps:       make(map[string]persistence.SwapRequest),
		prefs:       make(map[string]persistence.NotificationPreference),
		pushSubs:    make(map[string]persistence.PushSubscription),
	}
}

// ---------------------------------------------------------------- users

func (m *memoryStore) CreateUser(_ context.Context, user persistence.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryStore) UpdateUser(_ context.Context, user persistence.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (m *memoryStore) GetUserByCalendarToken(_ context.Context, token string) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.CalendarToken == token {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (m *memoryStore) ListUsers(_ context.Context) ([]persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// ---------------------------------------------------------- credentials

func (m *memoryStore) GetCredential(_ context.Context, userID string) (persistence.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential, ok := m.credentials[userID]
	if !ok {
		return persistence.Credential{}, persistence.ErrNotFound
	}
	return credential, nil
}

func (m *memoryStore) UpsertCredential(_ context.Context, credential persistence.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[credential.UserID] = credential
	return nil
}

// ------------------------------------------------------------- sessions

func (m *memoryStore) CreateSession(_ context.Context, session persistence.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = session
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, token string) (persistence.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (m *memoryStore) RevokeSession(_ context.Context, token string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok || session.RevokedAt != nil {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	m.sessions[token] = session
	return nil
}

func (m *memoryStore) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, session := range m.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(m.sessions, token)
		}
	}
	return nil
}

// --------------------------------------------------------------- events

func (m *memoryStore) CreateEvent(_ context.Context, event persistence.Event, subShifts []persistence.SubShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = event
	for _, shift := range subShifts {
		m.subShifts[shift.ID] = shift
	}
	return nil
}

func (m *memoryStore) UpdateEvent(_ context.Context, event persistence.Event, subShifts []persistence.SubShift, removedSubShiftIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.events[event.ID] = event
	for _, id := range removedSubShiftIDs {
		delete(m.subShifts, id)
		m.cascadeSubShiftLocked(id)
	}
	for _, shift := range subShifts {
		if existing, ok := m.subShifts[shift.ID]; ok {
			shift.CreatedAt = existing.CreatedAt
		}
		m.subShifts[shift.ID] = shift
	}
	return nil
}

func (m *memoryStore) GetEvent(_ context.Context, id string) (persistence.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (m *memoryStore) ListEvents(_ context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.Event, 0, len(m.events))
	for _, event := range m.events {
		if filter.StartsAfter != nil && !event.Start.After(*filter.StartsAfter) {
			continue
		}
		if filter.EndsBefore != nil && !event.End.Before(*filter.EndsBefore) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.events, id)
	for shiftID, shift := range m.subShifts {
		if shift.EventID == id {
			delete(m.subShifts, shiftID)
			m.cascadeSubShiftLocked(shiftID)
		}
	}
	return nil
}

func (m *memoryStore) GetSubShift(_ context.Context, id string) (persistence.SubShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shift, ok := m.subShifts[id]
	if !ok {
		return persistence.SubShift{}, persistence.ErrNotFound
	}
	return shift, nil
}

func (m *memoryStore) ListSubShiftsForEvents(_ context.Context, eventIDs []string) ([]persistence.SubShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = true
	}
	out := make([]persistence.SubShift, 0)
	for _, shift := range m.subShifts {
		if wanted[shift.EventID] {
			out = append(out, shift)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) cascadeSubShiftLocked(subShiftID string) {
	for assignmentID, assignment := range m.assignments {
		if assignment.SubShiftID == subShiftID {
			delete(m.assignments, assignmentID)
			m.cascadeAssignmentLocked(assignmentID)
		}
	}
}

func (m *memoryStore) cascadeAssignmentLocked(assignmentID string) {
	for swapID, swap := range m.swaps {
		if swap.AssignmentID == assignmentID {
			delete(m.swaps, swapID)
		}
	}
}

// ---------------------------------------------------------- assignments

func (m *memoryStore) CreateAssignment(_ context.Context, assignment persistence.ShiftAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	shift, ok := m.subShifts[assignment.SubShiftID]
	if !ok {
		return persistence.ErrNotFound
	}

	filled := 0
	for _, existing := range m.assignments {
		if existing.SubShiftID != assignment.SubShiftID {
			continue
		}
		if existing.UserID == assignment.UserID {
			return persistence.ErrDuplicate
		}
		filled++
	}
	if filled >= shift.Capacity {
		return persistence.ErrCapacityExceeded
	}

	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *memoryStore) GetAssignment(_ context.Context, id string) (persistence.ShiftAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assignment, ok := m.assignments[id]
	if !ok {
		return persistence.ShiftAssignment{}, persistence.ErrNotFound
	}
	return assignment, nil
}

func (m *memoryStore) UpdateAssignment(_ context.Context, assignment persistence.ShiftAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.assignments[assignment.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if assignment.UserID != existing.UserID {
		for _, other := range m.assignments {
			if other.ID != assignment.ID && other.SubShiftID == assignment.SubShiftID && other.UserID == assignment.UserID {
				return persistence.ErrDuplicate
			}
		}
	}
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *memoryStore) DeleteAssignment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.assignments, id)
	m.cascadeAssignmentLocked(id)
	return nil
}

func (m *memoryStore) ListAssignments(_ context.Context, filter persistence.AssignmentFilter) ([]persistence.ShiftAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wantedShifts := make(map[string]bool, len(filter.SubShiftIDs))
	for _, id := range filter.SubShiftIDs {
		wantedShifts[id] = true
	}

	out := make([]persistence.ShiftAssignment, 0)
	for _, assignment := range m.assignments {
		if filter.UserID != "" && assignment.UserID != filter.UserID {
			continue
		}
		if len(wantedShifts) > 0 && !wantedShifts[assignment.SubShiftID] {
			continue
		}
		if filter.Status != "" && assignment.Status != filter.Status {
			continue
		}
		shift, ok := m.subShifts[assignment.SubShiftID]
		if !ok {
			continue
		}
		if filter.StartsAfter != nil && shift.Start.Before(*filter.StartsAfter) {
			continue
		}
		if filter.StartsBefore != nil && !shift.Start.Before(*filter.StartsBefore) {
			continue
		}
		out = append(out, assignment)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := m.subShifts[out[i].SubShiftID], m.subShifts[out[j].SubShiftID]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) CountBySubShift(_ context.Context, subShiftIDs []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int, len(subShiftIDs))
	for _, id := range subShiftIDs {
		counts[id] = 0
	}
	for _, assignment := range m.assignments {
		if _, ok := counts[assignment.SubShiftID]; ok {
			counts[assignment.SubShiftID]++
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------- swaps

func (m *memoryStore) CreateSwap(_ context.Context, swap persistence.SwapRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	assignment, ok := m.assignments[swap.AssignmentID]
	if !ok {
		return persistence.ErrForeignKeyViolation
	}
	if assignment.Status != "confirmed" {
		return persistence.ErrConstraintViolation
	}
	m.swaps[swap.ID] = swap
	assignment.Status = "pending"
	assignment.UpdatedAt = swap.CreatedAt
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *memoryStore) GetSwap(_ context.Context, id string) (persistence.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swap, ok := m.swaps[id]
	if !ok {
		return persistence.SwapRequest{}, persistence.ErrNotFound
	}
	return swap, nil
}

func (m *memoryStore) DeclineSwap(_ context.Context, swapID string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	swap, ok := m.swaps[swapID]
	if !ok {
		return persistence.ErrNotFound
	}
	if swap.Status != "open" {
		return persistence.ErrConstraintViolation
	}

	swap.Status = "cancelled"
	swap.UpdatedAt = updatedAt
	m.swaps[swapID] = swap

	if assignment, ok := m.assignments[swap.AssignmentID]; ok {
		assignment.Status = "confirmed"
		assignment.UpdatedAt = updatedAt
		m.assignments[assignment.ID] = assignment
	}
	return nil
}

func (m *memoryStore) ListOpenSwaps(_ context.Context) ([]persistence.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.SwapRequest, 0)
	for _, swap := range m.swaps {
		if swap.Status == "open" {
			out = append(out, swap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) AcceptSwap(_ context.Context, swapID, acceptedByID string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	swap, ok := m.swaps[swapID]
	if !ok {
		return persistence.ErrNotFound
	}
	if swap.Status != "open" {
		return persistence.ErrConstraintViolation
	}
	assignment, ok := m.assignments[swap.AssignmentID]
	if !ok {
		return persistence.ErrNotFound
	}
	for _, other := range m.assignments {
		if other.ID != assignment.ID && other.SubShiftID == assignment.SubShiftID && other.UserID == acceptedByID {
			return persistence.ErrDuplicate
		}
	}

	assignment.UserID = acceptedByID
	assignment.Status = "confirmed"
	assignment.UpdatedAt = updatedAt
	m.assignments[assignment.ID] = assignment

	swap.Status = "accepted"
	swap.AcceptedByID = &acceptedByID
	swap.UpdatedAt = updatedAt
	m.swaps[swapID] = swap
	return nil
}

// ---------------------------------------------------------- preferences

func (m *memoryStore) GetPreference(_ context.Context, userID string) (persistence.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref, ok := m.prefs[userID]
	if !ok {
		return persistence.NotificationPreference{}, persistence.ErrNotFound
	}
	return pref, nil
}

func (m *memoryStore) UpsertPreference(_ context.Context, pref persistence.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = pref
	return nil
}

func (m *memoryStore) ListEnabledPreferences(_ context.Context) ([]persistence.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.NotificationPreference, 0)
	for _, pref := range m.prefs {
		if pref.Enabled {
			out = append(out, pref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memoryStore) CreatePushSubscription(_ context.Context, sub persistence.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sub.UserID + "|" + sub.Endpoint
	if _, ok := m.pushSubs[key]; ok {
		return persistence.ErrDuplicate
	}
	m.pushSubs[key] = sub
	return nil
}

func (m *memoryStore) DeletePushSubscription(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + endpoint
	if _, ok := m.pushSubs[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.pushSubs, key)
	return nil
}

func (m *memoryStore) ListPushSubscriptions(_ context.Context, userID string) ([]persistence.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.PushSubscription, 0)
	for _, sub := range m.pushSubs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []recordedNote
}

type recordedNote struct {
	UserID string
	Note   Notification
}

func (n *recordingNotifier) Notify(userID string, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, recordedNote{UserID: userID, Note: note})
}

func (n *recordingNotifier) sent() []recordedNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedNote(nil), n.notes...)
}

// sequenceIDs returns a deterministic id generator for tests.
func sequenceIDs(prefix string) func() string {
	return testfixtures.NewIDGenerator(prefix).NextFunc()
}

// fixedClock returns a now func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
