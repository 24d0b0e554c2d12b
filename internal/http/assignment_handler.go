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

var errInvalidAssignmentID = errors.New("an assignment id is required")

type assignmentService interface {
	Create(ctx context.Context, params application.CreateAssignmentParams) (application.ShiftAssignment, error)
	Delete(ctx context.Context, principal application.Principal, assignmentID string) error
	Get(ctx context.Context, assignmentID string) (application.ShiftAssignment, error)
	ListForUser(ctx context.Context, principal application.Principal, userID string) ([]application.AssignmentDetail, error)
}

type AssignmentHandler struct {
	service   assignmentService
	responder responder
}

func NewAssignmentHandler(service assignmentService, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{service: service, responder: newResponder(logger)}
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	assignment, err := h.service.Create(r.Context(), application.CreateAssignmentParams{
		Principal:  principal,
		SubShiftID: strings.TrimSpace(req.SubShiftID),
		UserID:     strings.TrimSpace(req.UserID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assignmentID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assignmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssignmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Delete(r.Context(), principal, assignmentID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assignmentID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assignmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssignmentID)
		return
	}

	assignment, err := h.service.Get(r.Context(), assignmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

// List returns the caller's assignments, or another user's when the
// user_id query parameter names one.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = principal.UserID
	}

	details, err := h.service.ListForUser(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssignmentsResponse{Assignments: toAssignmentDetailDTOs(details)})
}

type assignmentRequest struct {
	SubShiftID string `json:"sub_shift_id"`
	UserID     string `json:"user_id,omitempty"`
}

type assignmentResponse struct {
	Assignment assignmentDTO `json:"assignment"`
}

type listAssignmentsResponse struct {
	Assignments []assignmentDetailDTO `json:"assignments"`
}

type assignmentDTO struct {
	ID         string `json:"id"`
	SubShiftID string `json:"sub_shift_id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toAssignmentDTO(assignment application.ShiftAssignment) assignmentDTO {
	return assignmentDTO{
		ID:         assignment.ID,
		SubShiftID: assignment.SubShiftID,
		UserID:     assignment.UserID,
		Status:     string(assignment.Status),
		CreatedAt:  assignment.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  assignment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type assignmentDetailDTO struct {
	assignmentDTO
	RoleName   string  `json:"role_name"`
	ShiftStart string  `json:"shift_start"`
	ShiftEnd   string  `json:"shift_end"`
	EventTitle string  `json:"event_title"`
	EventID    string  `json:"event_id"`
	Location   *string `json:"location,omitempty"`
}

func toAssignmentDetailDTOs(details []application.AssignmentDetail) []assignmentDetailDTO {
	if len(details) == 0 {
		return nil
	}
	out := make([]assignmentDetailDTO, 0, len(details))
	for _, detail := range details {
		out = append(out, assignmentDetailDTO{
			assignmentDTO: toAssignmentDTO(detail.ShiftAssignment),
			RoleName:      detail.RoleName,
			ShiftStart:    detail.ShiftStart.UTC().Format(time.RFC3339Nano),
			ShiftEnd:      detail.ShiftEnd.UTC().Format(time.RFC3339Nano),
			EventTitle:    detail.EventTitle,
			EventID:       detail.EventID,
			Location:      detail.Location,
		})
	}
	return out
}
