package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/volunteer-coordinator/internal/application"
)

var errMissingEndpoint = errors.New("a push endpoint is required")

type preferenceService interface {
	Get(ctx context.Context, principal application.Principal) (application.NotificationPreference, error)
	Save(ctx context.Context, principal application.Principal, input application.PreferenceInput) (application.NotificationPreference, error)
	Subscribe(ctx context.Context, principal application.Principal, input application.PushSubscriptionInput) error
	Unsubscribe(ctx context.Context, principal application.Principal, endpoint string) error
}

type PreferenceHandler struct {
	service   preferenceService
	responder responder
}

func NewPreferenceHandler(service preferenceService, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{service: service, responder: newResponder(logger)}
}

func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	pref, err := h.service.Get(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, preferenceResponse{Preference: toPreferenceDTO(pref)})
}

func (h *PreferenceHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	pref, err := h.service.Save(r.Context(), principal, application.PreferenceInput{
		Enabled:     req.Enabled,
		LeadMinutes: req.LeadMinutes,
		Timezone:    strings.TrimSpace(req.Timezone),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, preferenceResponse{Preference: toPreferenceDTO(pref)})
}

func (h *PreferenceHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	err := h.service.Subscribe(r.Context(), principal, application.PushSubscriptionInput{
		Endpoint:  strings.TrimSpace(req.Endpoint),
		P256dhKey: strings.TrimSpace(req.Keys.P256dh),
		AuthKey:   strings.TrimSpace(req.Keys.Auth),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, nil)
}

func (h *PreferenceHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingEndpoint)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Unsubscribe(r.Context(), principal, endpoint); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type preferenceRequest struct {
	Enabled     bool   `json:"enabled"`
	LeadMinutes int    `json:"lead_minutes"`
	Timezone    string `json:"timezone"`
}

// pushSubscriptionRequest matches the JSON a browser's PushSubscription
// serializes to.
type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type preferenceResponse struct {
	Preference preferenceDTO `json:"preference"`
}

type preferenceDTO struct {
	UserID      string `json:"user_id"`
	Enabled     bool   `json:"enabled"`
	LeadMinutes int    `json:"lead_minutes"`
	Timezone    string `json:"timezone"`
}

func toPreferenceDTO(pref application.NotificationPreference) preferenceDTO {
	return preferenceDTO{
		UserID:      pref.UserID,
		Enabled:     pref.Enabled,
		LeadMinutes: pref.LeadMinutes,
		Timezone:    pref.Timezone,
	}
}
