package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/application"
)

var errInvalidUserID = errors.New("a user id is required")

type volunteerService interface {
	Register(ctx context.Context, params application.RegisterVolunteerParams) (application.User, error)
	List(ctx context.Context, principal application.Principal) ([]application.VolunteerSummary, error)
	Get(ctx context.Context, principal application.Principal, userID string) (application.VolunteerDetail, error)
	Promote(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	Demote(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	TransferSuper(ctx context.Context, principal application.Principal, userID string) (application.User, error)
}

type VolunteerHandler struct {
	service   volunteerService
	responder responder
}

func NewVolunteerHandler(service volunteerService, logger *slog.Logger) *VolunteerHandler {
	return &VolunteerHandler{service: service, responder: newResponder(logger)}
}

func (h *VolunteerHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerVolunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	user, err := h.service.Register(r.Context(), application.RegisterVolunteerParams{
		Principal:   principal,
		Email:       strings.TrimSpace(req.Email),
		FullName:    strings.TrimSpace(req.FullName),
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *VolunteerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	summaries, err := h.service.List(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listVolunteersResponse{Volunteers: toVolunteerSummaryDTOs(summaries)})
}

func (h *VolunteerHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	detail, err := h.service.Get(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, volunteerDetailResponse{
		User:     toUserDTO(detail.User),
		Upcoming: toAssignmentDetailDTOs(detail.Upcoming),
		Past:     toAssignmentDetailDTOs(detail.Past),
		Overlaps: toOverlapDTOs(detail.Overlaps),
	})
}

func (h *VolunteerHandler) Promote(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.changeRole(w, r, h.service.Promote)
}

func (h *VolunteerHandler) Demote(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.changeRole(w, r, h.service.Demote)
}

func (h *VolunteerHandler) TransferSuper(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.changeRole(w, r, h.service.TransferSuper)
}

type roleChange func(ctx context.Context, principal application.Principal, userID string) (application.User, error)

func (h *VolunteerHandler) changeRole(w http.ResponseWriter, r *http.Request, change roleChange) {
	if h == nil || h.service == nil || change == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	user, err := change(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

type registerVolunteerRequest struct {
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	Password    string  `json:"password"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listVolunteersResponse struct {
	Volunteers []volunteerSummaryDTO `json:"volunteers"`
}

type volunteerDetailResponse struct {
	User     userDTO               `json:"user"`
	Upcoming []assignmentDetailDTO `json:"upcoming"`
	Past     []assignmentDetailDTO `json:"past"`
	Overlaps []overlapDTO          `json:"overlaps,omitempty"`
}

type overlapDTO struct {
	FirstAssignmentID  string `json:"first_assignment_id"`
	SecondAssignmentID string `json:"second_assignment_id"`
}

func toOverlapDTOs(overlaps []application.OverlapWarning) []overlapDTO {
	if len(overlaps) == 0 {
		return nil
	}
	out := make([]overlapDTO, 0, len(overlaps))
	for _, warning := range overlaps {
		out = append(out, overlapDTO{
			FirstAssignmentID:  warning.FirstAssignmentID,
			SecondAssignmentID: warning.SecondAssignmentID,
		})
	}
	return out
}

type userDTO struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	Role        string  `json:"role"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        string(user.Role),
		PhoneNumber: user.PhoneNumber,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type volunteerSummaryDTO struct {
	userDTO
	AssignmentCount int     `json:"assignment_count"`
	LastActive      *string `json:"last_active,omitempty"`
}

func toVolunteerSummaryDTOs(summaries []application.VolunteerSummary) []volunteerSummaryDTO {
	if len(summaries) == 0 {
		return nil
	}
	out := make([]volunteerSummaryDTO, 0, len(summaries))
	for _, summary := range summaries {
		dto := volunteerSummaryDTO{
			userDTO:         toUserDTO(summary.User),
			AssignmentCount: summary.AssignmentCount,
		}
		if summary.LastActive != nil {
			formatted := summary.LastActive.UTC().Format(time.RFC3339Nano)
			dto.LastActive = &formatted
		}
		out = append(out, dto)
	}
	return out
}
