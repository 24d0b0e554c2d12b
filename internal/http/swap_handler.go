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

var errInvalidSwapID = errors.New("a swap request id is required")

type swapService interface {
	Open(ctx context.Context, principal application.Principal, assignmentID string) (application.SwapRequest, error)
	Accept(ctx context.Context, principal application.Principal, requestID, acceptedByID string) (application.SwapRequest, error)
	Decline(ctx context.Context, principal application.Principal, requestID string) (application.SwapRequest, error)
	OrganizerCancel(ctx context.Context, principal application.Principal, requestID string) error
	ListOpen(ctx context.Context, principal application.Principal) ([]application.SwapListing, error)
}

type SwapHandler struct {
	service   swapService
	responder responder
}

func NewSwapHandler(service swapService, logger *slog.Logger) *SwapHandler {
	return &SwapHandler{service: service, responder: newResponder(logger)}
}

// Open creates a swap request for the assignment identified in the path.
func (h *SwapHandler) Open(w http.ResponseWriter, r *http.Request) {
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

	swap, err := h.service.Open(r.Context(), principal, assignmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, swapResponse{Swap: toSwapDTO(swap)})
}

func (h *SwapHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	swapID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(swapID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSwapID)
		return
	}

	var req acceptSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	swap, err := h.service.Accept(r.Context(), principal, swapID, strings.TrimSpace(req.AcceptedByID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, swapResponse{Swap: toSwapDTO(swap)})
}

func (h *SwapHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	swapID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(swapID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSwapID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	swap, err := h.service.Decline(r.Context(), principal, swapID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, swapResponse{Swap: toSwapDTO(swap)})
}

// Cancel removes the underlying assignment outright, freeing the slot.
func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	swapID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(swapID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSwapID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.OrganizerCancel(r.Context(), principal, swapID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SwapHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	listings, err := h.service.ListOpen(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSwapsResponse{Swaps: toSwapListingDTOs(listings)})
}

type acceptSwapRequest struct {
	AcceptedByID string `json:"accepted_by_id"`
}

type swapResponse struct {
	Swap swapDTO `json:"swap"`
}

type listSwapsResponse struct {
	Swaps []swapListingDTO `json:"swaps"`
}

type swapDTO struct {
	ID           string  `json:"id"`
	AssignmentID string  `json:"assignment_id"`
	RequesterID  string  `json:"requester_id"`
	Status       string  `json:"status"`
	AcceptedByID *string `json:"accepted_by_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toSwapDTO(swap application.SwapRequest) swapDTO {
	return swapDTO{
		ID:           swap.ID,
		AssignmentID: swap.AssignmentID,
		RequesterID:  swap.RequesterID,
		Status:       string(swap.Status),
		AcceptedByID: swap.AcceptedByID,
		CreatedAt:    swap.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    swap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type swapListingDTO struct {
	swapDTO
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	RoleName       string `json:"role_name"`
	ShiftStart     string `json:"shift_start"`
	ShiftEnd       string `json:"shift_end"`
	EventTitle     string `json:"event_title"`
}

func toSwapListingDTOs(listings []application.SwapListing) []swapListingDTO {
	if len(listings) == 0 {
		return nil
	}
	out := make([]swapListingDTO, 0, len(listings))
	for _, listing := range listings {
		out = append(out, swapListingDTO{
			swapDTO:        toSwapDTO(listing.SwapRequest),
			RequesterName:  listing.RequesterName,
			RequesterEmail: listing.RequesterEmail,
			RoleName:       listing.RoleName,
			ShiftStart:     listing.ShiftStart.UTC().Format(time.RFC3339Nano),
			ShiftEnd:       listing.ShiftEnd.UTC().Format(time.RFC3339Nano),
			EventTitle:     listing.EventTitle,
		})
	}
	return out
}
