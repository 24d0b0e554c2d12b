package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

var errMissingReminderSecret = errors.New("a valid trigger secret is required")

type reminderService interface {
	Scan(ctx context.Context) (int, error)
}

// ReminderHandler exposes the reminder scan to external schedulers. The
// route is session-free and instead guarded by a shared secret so a cron
// sidecar or uptime pinger can drive it without holding credentials.
type ReminderHandler struct {
	service   reminderService
	secret    string
	responder responder
}

func NewReminderHandler(service reminderService, secret string, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{service: service, secret: secret, responder: newResponder(logger)}
}

func (h *ReminderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	provided := strings.TrimSpace(r.Header.Get("X-Trigger-Secret"))
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingReminderSecret)
		return
	}

	emitted, err := h.service.Scan(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderScanResponse{Emitted: emitted})
}

type reminderScanResponse struct {
	Emitted int `json:"emitted"`
}
