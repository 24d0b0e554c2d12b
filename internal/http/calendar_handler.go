package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/volunteer-coordinator/internal/application"
)

var errInvalidFeedToken = errors.New("a calendar feed token is required")

type calendarService interface {
	Feed(ctx context.Context, token string) (string, error)
	RotateToken(ctx context.Context, principal application.Principal) (string, error)
}

type CalendarHandler struct {
	service   calendarService
	responder responder
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger)}
}

// Feed serves the iCalendar document for the token in the path. This route
// is deliberately session-free so calendar clients can poll it.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request, token string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token = strings.TrimSuffix(strings.TrimSpace(token), ".ics")
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidFeedToken)
		return
	}

	feed, err := h.service.Feed(r.Context(), token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shifts.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed)); err != nil {
		h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

// RotateToken issues the caller a fresh feed token, invalidating the old URL.
func (h *CalendarHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	token, err := h.service.RotateToken(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarTokenResponse{Token: token})
}

type calendarTokenResponse struct {
	Token string `json:"token"`
}
