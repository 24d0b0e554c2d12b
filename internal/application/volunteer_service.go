package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/overlap"
	"github.com/example/volunteer-coordinator/internal/persistence"
)

// RegisterVolunteerParams wraps the data required to create an account.
type RegisterVolunteerParams struct {
	Principal   Principal
	Email       string
	FullName    string
	Password    string
	PhoneNumber *string
}

// VolunteerService manages the volunteer directory: account creation, role
// changes, and the organizer-facing listing and detail views.
type VolunteerService struct {
	users        persistence.UserRepository
	credentials  persistence.CredentialRepository
	assignments  persistence.AssignmentRepository
	events       persistence.EventRepository
	hashPassword func(password string) (string, error)
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewVolunteerService wires dependencies for directory operations.
func NewVolunteerService(
	users persistence.UserRepository,
	credentials persistence.CredentialRepository,
	assignments persistence.AssignmentRepository,
	events persistence.EventRepository,
	hashPassword func(password string) (string, error),
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *VolunteerService {
	if hashPassword == nil {
		hashPassword = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &VolunteerService{
		users:        users,
		credentials:  credentials,
		assignments:  assignments,
		events:       events,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Register creates a volunteer account with its password credential and a
// fresh calendar token. Restricted to organizers and above.
func (s *VolunteerService) Register(ctx context.Context, params RegisterVolunteerParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("VolunteerService is nil")
	}
	if err := requireOrganizer(params.Principal); err != nil {
		return User{}, err
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	fullName := strings.TrimSpace(params.FullName)

	vErr := &ValidationError{}
	if email == "" || !strings.Contains(email, "@") {
		vErr.add("email", "a valid email address is required")
	}
	if fullName == "" {
		vErr.add("full_name", "full name is required")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hashPassword(params.Password)
	if err != nil {
		return User{}, err
	}

	createdAt := s.now()
	record := persistence.User{
		ID:            s.idGenerator(),
		Email:         email,
		FullName:      fullName,
		Role:          string(RoleVolunteer),
		PhoneNumber:   params.PhoneNumber,
		CalendarToken: s.idGenerator(),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := s.users.CreateUser(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return User{}, &ConflictError{Code: ConflictEmailTaken, Message: "email is already registered"}
		}
		return User{}, mapRepoError(err)
	}

	credential := persistence.Credential{
		UserID:       record.ID,
		PasswordHash: hash,
		UpdatedAt:    createdAt,
	}
	if err := s.credentials.UpsertCredential(ctx, credential); err != nil {
		return User{}, err
	}

	serviceLogger(ctx, s.logger, "volunteer", "register").InfoContext(ctx,
		"volunteer registered", "user_id", record.ID)
	return toUser(record), nil
}

// List returns the directory with per-user assignment counts and the time of
// each user's most recent assignment activity. Restricted to organizers.
func (s *VolunteerService) List(ctx context.Context, principal Principal) ([]VolunteerSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("VolunteerService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return nil, err
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]VolunteerSummary, 0, len(records))
	for _, record := range records {
		assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{UserID: record.ID})
		if err != nil {
			return nil, err
		}

		summary := VolunteerSummary{User: toUser(record), AssignmentCount: len(assignments)}
		for _, assignment := range assignments {
			if summary.LastActive == nil || assignment.UpdatedAt.After(*summary.LastActive) {
				updated := assignment.UpdatedAt
				summary.LastActive = &updated
			}
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].FullName < summaries[j].FullName
	})
	return summaries, nil
}

// Get returns one volunteer with their assignments split into upcoming and
// past relative to now. Volunteers may view themselves; anything else
// requires organizer rights.
func (s *VolunteerService) Get(ctx context.Context, principal Principal, userID string) (VolunteerDetail, error) {
	if s == nil {
		return VolunteerDetail{}, fmt.Errorf("VolunteerService is nil")
	}
	if principal.UserID != userID {
		if err := requireOrganizer(principal); err != nil {
			return VolunteerDetail{}, err
		}
	}

	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return VolunteerDetail{}, mapRepoError(err)
	}

	assignments, err := s.assignments.ListAssignments(ctx, persistence.AssignmentFilter{UserID: userID})
	if err != nil {
		return VolunteerDetail{}, err
	}

	detail := VolunteerDetail{User: toUser(record)}
	reference := s.now()
	for _, assignment := range assignments {
		shift, err := s.events.GetSubShift(ctx, assignment.SubShiftID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return VolunteerDetail{}, err
		}
		event, err := s.events.GetEvent(ctx, shift.EventID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return VolunteerDetail{}, err
		}

		entry := AssignmentDetail{
			ShiftAssignment: toAssignment(assignment),
			RoleName:        shift.RoleName,
			ShiftStart:      shift.Start,
			ShiftEnd:        shift.End,
			EventTitle:      event.Title,
			EventID:         event.ID,
			Location:        event.Location,
		}
		if shift.Start.After(reference) {
			detail.Upcoming = append(detail.Upcoming, entry)
		} else {
			detail.Past = append(detail.Past, entry)
		}
	}

	sort.Slice(detail.Upcoming, func(i, j int) bool {
		return detail.Upcoming[i].ShiftStart.Before(detail.Upcoming[j].ShiftStart)
	})
	sort.Slice(detail.Past, func(i, j int) bool {
		return detail.Past[i].ShiftStart.After(detail.Past[j].ShiftStart)
	})

	windows := make([]overlap.Window, 0, len(detail.Upcoming))
	for _, entry := range detail.Upcoming {
		windows = append(windows, overlap.Window{ID: entry.ID, Start: entry.ShiftStart, End: entry.ShiftEnd})
	}
	for _, collision := range overlap.Detect(windows) {
		detail.Overlaps = append(detail.Overlaps, OverlapWarning{
			FirstAssignmentID:  collision.FirstID,
			SecondAssignmentID: collision.SecondID,
		})
	}
	return detail, nil
}

// Promote raises a volunteer to organizer. Restricted to organizers.
func (s *VolunteerService) Promote(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("VolunteerService is nil")
	}
	if err := requireOrganizer(principal); err != nil {
		return User{}, err
	}

	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}

	role, err := ParseRole(record.Role)
	if err != nil {
		return User{}, err
	}
	switch role {
	case RoleVolunteer:
		return s.setRole(ctx, record, RoleOrganizer, "promote")
	case RoleOrganizer, RoleSuperOrganizer:
		return User{}, &ConflictError{Code: ConflictRoleUnchanged, Message: "user is already an organizer"}
	default:
		return User{}, fmt.Errorf("unhandled role %q", role)
	}
}

// Demote lowers an organizer to volunteer. The super organizer cannot be
// demoted; transfer the role first. Restricted to the super organizer.
func (s *VolunteerService) Demote(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("VolunteerService is nil")
	}
	if principal.Role != RoleSuperOrganizer {
		return User{}, ErrForbidden
	}

	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}

	role, err := ParseRole(record.Role)
	if err != nil {
		return User{}, err
	}
	switch role {
	case RoleOrganizer:
		return s.setRole(ctx, record, RoleVolunteer, "demote")
	case RoleVolunteer:
		return User{}, &ConflictError{Code: ConflictRoleUnchanged, Message: "user is already a volunteer"}
	case RoleSuperOrganizer:
		return User{}, &ConflictError{Code: ConflictRoleUnchanged, Message: "transfer the super organizer role before demoting"}
	default:
		return User{}, fmt.Errorf("unhandled role %q", role)
	}
}

// TransferSuper hands the super organizer role to another user. The caller
// must hold it; they become a regular organizer and the target becomes the
// sole super organizer.
func (s *VolunteerService) TransferSuper(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("VolunteerService is nil")
	}
	if principal.Role != RoleSuperOrganizer {
		return User{}, ErrForbidden
	}
	if principal.UserID == userID {
		return User{}, &ConflictError{Code: ConflictRoleUnchanged, Message: "cannot transfer the role to yourself"}
	}

	target, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	caller, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapRepoError(err)
	}

	// Demote the caller first so the role is never held by two users at once
	// from the point of view of organizer-only checks.
	if _, err := s.setRole(ctx, caller, RoleOrganizer, "transfer_super"); err != nil {
		return User{}, err
	}
	return s.setRole(ctx, target, RoleSuperOrganizer, "transfer_super")
}

func (s *VolunteerService) setRole(ctx context.Context, record persistence.User, role Role, operation string) (User, error) {
	record.Role = string(role)
	record.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, record); err != nil {
		return User{}, mapRepoError(err)
	}
	serviceLogger(ctx, s.logger, "volunteer", operation).InfoContext(ctx,
		"role changed", "user_id", record.ID, "role", record.Role)
	return toUser(record), nil
}
