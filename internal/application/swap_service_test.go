package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
	"github.com/example/volunteer-coordinator/internal/testfixtures"
)

func newSwapServiceForTest(store *memoryStore, notifier Notifier, timeout time.Duration) *SwapService {
	return NewSwapService(store, store, store, store, notifier, sequenceIDs("swap"), fixedClock(testfixtures.ReferenceTime()), timeout, nil)
}

func seedHeldShift(t *testing.T, store *memoryStore) (persistence.SubShift, persistence.User, persistence.ShiftAssignment) {
	t.Helper()
	_, shift := seedShift(t, store, 3)
	holder := seedUser(t, store, RoleVolunteer)
	assignment := testfixtures.NewAssignment(shift.ID, holder.ID)
	if err := store.CreateAssignment(context.Background(), assignment); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return shift, holder, assignment
}

func TestOpenSwapFlipsAssignmentToPending(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)

	service := newSwapServiceForTest(store, nil, 0)

	swap, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if swap.Status != SwapOpen {
		t.Fatalf("swap status = %q, want %q", swap.Status, SwapOpen)
	}
	if swap.RequesterID != holder.ID {
		t.Fatalf("requester = %q, want %q", swap.RequesterID, holder.ID)
	}

	stored, err := store.GetAssignment(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	if stored.Status != "pending" {
		t.Fatalf("assignment status = %q, want pending", stored.Status)
	}
}

func TestOpenSwapOnlyHolderMayRequest(t *testing.T) {
	store := newMemoryStore()
	_, _, assignment := seedHeldShift(t, store)
	stranger := seedUser(t, store, RoleVolunteer)

	service := newSwapServiceForTest(store, nil, 0)

	_, err := service.Open(context.Background(), Principal{UserID: stranger.ID, Role: RoleVolunteer}, assignment.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Open error = %v, want ErrForbidden", err)
	}
}

func TestOpenSwapRejectsSecondRequest(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)

	service := newSwapServiceForTest(store, nil, 0)
	principal := Principal{UserID: holder.ID, Role: RoleVolunteer}

	if _, err := service.Open(context.Background(), principal, assignment.ID); err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	_, err := service.Open(context.Background(), principal, assignment.ID)
	if !IsConflict(err, ConflictSwapAlreadyOpen) {
		t.Fatalf("second Open error = %v, want swap_already_open conflict", err)
	}
}

func TestAcceptSwapReassignsAtomically(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)
	notifier := &recordingNotifier{}

	service := newSwapServiceForTest(store, notifier, 0)

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	accepted, err := service.Accept(context.Background(), Principal{UserID: "org", Role: RoleOrganizer}, opened.ID, replacement.ID)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if accepted.Status != SwapAccepted {
		t.Fatalf("swap status = %q, want %q", accepted.Status, SwapAccepted)
	}
	if accepted.AcceptedByID == nil || *accepted.AcceptedByID != replacement.ID {
		t.Fatalf("accepted_by = %v, want %q", accepted.AcceptedByID, replacement.ID)
	}

	stored, err := store.GetAssignment(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	if stored.UserID != replacement.ID {
		t.Errorf("assignment holder = %q, want %q", stored.UserID, replacement.ID)
	}
	if stored.Status != "confirmed" {
		t.Errorf("assignment status = %q, want confirmed", stored.Status)
	}

	notes := notifier.sent()
	if len(notes) != 1 || notes[0].UserID != replacement.ID {
		t.Fatalf("notifications = %+v, want one addressed to %q", notes, replacement.ID)
	}
}

func TestAcceptSwapRequiresOrganizer(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)

	service := newSwapServiceForTest(store, nil, 0)

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	_, err = service.Accept(context.Background(), Principal{UserID: replacement.ID, Role: RoleVolunteer}, opened.ID, replacement.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Accept error = %v, want ErrForbidden", err)
	}
}

func TestAcceptSwapRejectsResolvedRequest(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)

	service := newSwapServiceForTest(store, nil, 0)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := service.Decline(context.Background(), organizer, opened.ID); err != nil {
		t.Fatalf("Decline returned error: %v", err)
	}

	_, err = service.Accept(context.Background(), organizer, opened.ID, replacement.ID)
	if !IsConflict(err, ConflictSwapNotOpen) {
		t.Fatalf("Accept error = %v, want swap_not_open conflict", err)
	}
}

func TestAcceptSwapRejectsExistingHolder(t *testing.T) {
	store := newMemoryStore()
	shift, holder, assignment := seedHeldShift(t, store)
	other := seedUser(t, store, RoleVolunteer)
	if err := store.CreateAssignment(context.Background(), testfixtures.NewAssignment(shift.ID, other.ID)); err != nil {
		t.Fatalf("seed second assignment: %v", err)
	}

	service := newSwapServiceForTest(store, nil, 0)

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	_, err = service.Accept(context.Background(), Principal{UserID: "org", Role: RoleOrganizer}, opened.ID, other.ID)
	if !IsConflict(err, ConflictAlreadyAssigned) {
		t.Fatalf("Accept error = %v, want already_assigned conflict", err)
	}
}

func TestAcceptSwapHonoursTimeout(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	service := NewSwapService(store, store, store, store, nil, sequenceIDs("swap"), clock.NowFunc(), 48*time.Hour, nil)

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	clock.Advance(49 * time.Hour)
	_, err = service.Accept(context.Background(), Principal{UserID: "org", Role: RoleOrganizer}, opened.ID, replacement.ID)
	if !IsConflict(err, ConflictSwapNotOpen) {
		t.Fatalf("expired Accept error = %v, want swap_not_open conflict", err)
	}
}

func TestDeclineSwapRevertsAssignment(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)

	service := newSwapServiceForTest(store, nil, 0)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	declined, err := service.Decline(context.Background(), organizer, opened.ID)
	if err != nil {
		t.Fatalf("Decline returned error: %v", err)
	}
	if declined.Status != SwapCancelled {
		t.Fatalf("swap status = %q, want %q", declined.Status, SwapCancelled)
	}

	stored, err := store.GetAssignment(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	if stored.UserID != holder.ID || stored.Status != "confirmed" {
		t.Fatalf("assignment after decline = %+v, want confirmed for original holder", stored)
	}

	// A second decline is a no-op on the already cancelled request.
	again, err := service.Decline(context.Background(), organizer, opened.ID)
	if err != nil {
		t.Fatalf("repeated Decline returned error: %v", err)
	}
	if again.Status != SwapCancelled {
		t.Fatalf("repeated decline status = %q, want %q", again.Status, SwapCancelled)
	}
}

func TestDeclineSwapRejectsAcceptedRequest(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)

	service := newSwapServiceForTest(store, nil, 0)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := service.Accept(context.Background(), organizer, opened.ID, replacement.ID); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	_, err = service.Decline(context.Background(), organizer, opened.ID)
	if !IsConflict(err, ConflictSwapNotOpen) {
		t.Fatalf("Decline error = %v, want swap_not_open conflict", err)
	}
}

// staleSwapReads serves a fixed snapshot of one swap request, standing in
// for a reader whose view predates a concurrent commit.
type staleSwapReads struct {
	*memoryStore
	snapshot persistence.SwapRequest
}

func (s *staleSwapReads) GetSwap(ctx context.Context, id string) (persistence.SwapRequest, error) {
	if id == s.snapshot.ID {
		return s.snapshot, nil
	}
	return s.memoryStore.GetSwap(ctx, id)
}

func TestDeclineSwapLosesRaceToAccept(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := newSwapServiceForTest(store, nil, 0).Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	// The decliner reads the request while it is still open, then an accept
	// commits before the decline does.
	snapshot, err := store.GetSwap(context.Background(), opened.ID)
	if err != nil {
		t.Fatalf("GetSwap returned error: %v", err)
	}
	if err := store.AcceptSwap(context.Background(), opened.ID, replacement.ID, testfixtures.ReferenceTime()); err != nil {
		t.Fatalf("AcceptSwap returned error: %v", err)
	}

	stale := &staleSwapReads{memoryStore: store, snapshot: snapshot}
	service := NewSwapService(stale, store, store, store, nil, sequenceIDs("swap"), fixedClock(testfixtures.ReferenceTime()), 0, nil)

	_, err = service.Decline(context.Background(), organizer, opened.ID)
	if !IsConflict(err, ConflictSwapNotOpen) {
		t.Fatalf("racing Decline error = %v, want swap_not_open conflict", err)
	}

	stored, err := store.GetSwap(context.Background(), opened.ID)
	if err != nil {
		t.Fatalf("GetSwap returned error: %v", err)
	}
	if stored.Status != "accepted" {
		t.Fatalf("swap status = %q, accepted must stay terminal", stored.Status)
	}
	held, err := store.GetAssignment(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	if held.UserID != replacement.ID || held.Status != "confirmed" {
		t.Fatalf("assignment after race = %+v, want confirmed for %q", held, replacement.ID)
	}
}

// staleAssignmentReads serves a fixed snapshot of one assignment.
type staleAssignmentReads struct {
	*memoryStore
	snapshot persistence.ShiftAssignment
}

func (s *staleAssignmentReads) GetAssignment(ctx context.Context, id string) (persistence.ShiftAssignment, error) {
	if id == s.snapshot.ID {
		return s.snapshot, nil
	}
	return s.memoryStore.GetAssignment(ctx, id)
}

func TestOpenSwapDoubleSubmitLeavesOneRequest(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	principal := Principal{UserID: holder.ID, Role: RoleVolunteer}

	if _, err := newSwapServiceForTest(store, nil, 0).Open(context.Background(), principal, assignment.ID); err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}

	// The second submit read the assignment before the first one committed,
	// so its pre-check still sees confirmed. The storage guard must reject it.
	snapshot := assignment
	snapshot.Status = "confirmed"
	stale := &staleAssignmentReads{memoryStore: store, snapshot: snapshot}
	service := NewSwapService(store, stale, store, store, nil, sequenceIDs("swap2"), fixedClock(testfixtures.ReferenceTime()), 0, nil)

	_, err := service.Open(context.Background(), principal, assignment.ID)
	if !IsConflict(err, ConflictSwapAlreadyOpen) {
		t.Fatalf("racing Open error = %v, want swap_already_open conflict", err)
	}

	open, err := store.ListOpenSwaps(context.Background())
	if err != nil {
		t.Fatalf("ListOpenSwaps returned error: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open requests = %d, want exactly 1", len(open))
	}
}

func TestSwapLifecycleKeepsShiftAtCapacity(t *testing.T) {
	store := newMemoryStore()
	_, shift := seedShift(t, store, 1)
	first := seedUser(t, store, RoleVolunteer)
	replacement := seedUser(t, store, RoleVolunteer)
	latecomer := seedUser(t, store, RoleVolunteer)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	assignments := newAssignmentServiceForTest(store, nil)
	swaps := newSwapServiceForTest(store, nil, 0)

	created, err := assignments.Create(context.Background(), CreateAssignmentParams{
		Principal:  Principal{UserID: first.ID, Role: RoleVolunteer},
		SubShiftID: shift.ID,
	})
	if err != nil {
		t.Fatalf("sign-up returned error: %v", err)
	}

	signUp := func(userID string) error {
		_, err := assignments.Create(context.Background(), CreateAssignmentParams{
			Principal:  Principal{UserID: userID, Role: RoleVolunteer},
			SubShiftID: shift.ID,
		})
		return err
	}

	if err := signUp(latecomer.ID); !IsConflict(err, ConflictCapacityExceeded) {
		t.Fatalf("sign-up on full shift error = %v, want capacity_exceeded conflict", err)
	}

	opened, err := swaps.Open(context.Background(), Principal{UserID: first.ID, Role: RoleVolunteer}, created.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	// A pending assignment keeps its slot while the request is open.
	if err := signUp(latecomer.ID); !IsConflict(err, ConflictCapacityExceeded) {
		t.Fatalf("sign-up during open swap error = %v, want capacity_exceeded conflict", err)
	}

	if _, err := swaps.Accept(context.Background(), organizer, opened.ID, replacement.ID); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	if err := signUp(latecomer.ID); !IsConflict(err, ConflictCapacityExceeded) {
		t.Fatalf("sign-up after accept error = %v, want capacity_exceeded conflict", err)
	}

	held, err := store.GetAssignment(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetAssignment returned error: %v", err)
	}
	if held.UserID != replacement.ID || held.Status != "confirmed" {
		t.Fatalf("assignment after lifecycle = %+v, want confirmed for %q", held, replacement.ID)
	}
}

func TestOrganizerCancelDeletesAssignment(t *testing.T) {
	store := newMemoryStore()
	shift, holder, assignment := seedHeldShift(t, store)

	service := newSwapServiceForTest(store, nil, 0)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if err := service.OrganizerCancel(context.Background(), organizer, opened.ID); err != nil {
		t.Fatalf("OrganizerCancel returned error: %v", err)
	}

	if _, err := store.GetAssignment(context.Background(), assignment.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("assignment survived cancellation")
	}
	if _, err := store.GetSwap(context.Background(), opened.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("swap request survived cancellation")
	}

	counts, err := store.CountBySubShift(context.Background(), []string{shift.ID})
	if err != nil {
		t.Fatalf("CountBySubShift returned error: %v", err)
	}
	if counts[shift.ID] != 0 {
		t.Fatalf("slot not freed, count = %d", counts[shift.ID])
	}

	if err := service.OrganizerCancel(context.Background(), organizer, opened.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeated cancel error = %v, want ErrNotFound", err)
	}
}

func TestOrganizerCancelRejectsAcceptedRequest(t *testing.T) {
	store := newMemoryStore()
	_, holder, assignment := seedHeldShift(t, store)
	replacement := seedUser(t, store, RoleVolunteer)

	service := newSwapServiceForTest(store, nil, 0)
	organizer := Principal{UserID: "org", Role: RoleOrganizer}

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := service.Accept(context.Background(), organizer, opened.ID, replacement.ID); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	err = service.OrganizerCancel(context.Background(), organizer, opened.ID)
	if !IsConflict(err, ConflictSwapNotOpen) {
		t.Fatalf("OrganizerCancel error = %v, want swap_not_open conflict", err)
	}
}

func TestListOpenEnrichesListings(t *testing.T) {
	store := newMemoryStore()
	event, shift := seedShift(t, store, 3)
	holder := seedUser(t, store, RoleVolunteer)
	assignment := testfixtures.NewAssignment(shift.ID, holder.ID)
	if err := store.CreateAssignment(context.Background(), assignment); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	service := newSwapServiceForTest(store, nil, 0)

	opened, err := service.Open(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}, assignment.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	listings, err := service.ListOpen(context.Background(), Principal{UserID: "org", Role: RoleOrganizer})
	if err != nil {
		t.Fatalf("ListOpen returned error: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}
	listing := listings[0]
	if listing.ID != opened.ID {
		t.Errorf("listing id = %q, want %q", listing.ID, opened.ID)
	}
	if listing.RequesterName != holder.FullName {
		t.Errorf("requester name = %q, want %q", listing.RequesterName, holder.FullName)
	}
	if listing.RoleName != shift.RoleName {
		t.Errorf("role name = %q, want %q", listing.RoleName, shift.RoleName)
	}
	if listing.EventTitle != event.Title {
		t.Errorf("event title = %q, want %q", listing.EventTitle, event.Title)
	}

	if _, err := service.ListOpen(context.Background(), Principal{UserID: holder.ID, Role: RoleVolunteer}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("volunteer ListOpen error = %v, want ErrForbidden", err)
	}
}
