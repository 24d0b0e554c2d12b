package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/application"
	"github.com/example/volunteer-coordinator/internal/persistence"
)

var errInvalidEventID = errors.New("an event id is required")

type eventService interface {
	Create(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	Update(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	Delete(ctx context.Context, params application.DeleteEventParams) error
	Get(ctx context.Context, eventID string) (application.Event, error)
	List(ctx context.Context, filter persistence.EventFilter) ([]application.Event, error)
}

type EventHandler struct {
	service   eventService
	responder responder
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.service.Create(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.service.Update(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     req.toInput(),
		Force:     parseForce(r.URL.Query()),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	err := h.service.Delete(r.Context(), application.DeleteEventParams{
		Principal: principal,
		EventID:   eventID,
		Force:     parseForce(r.URL.Query()),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	event, err := h.service.Get(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events, err := h.service.List(r.Context(), buildEventFilter(r.URL.Query()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func parseForce(values url.Values) bool {
	return strings.EqualFold(strings.TrimSpace(values.Get("force")), "true")
}

func buildEventFilter(values url.Values) persistence.EventFilter {
	var filter persistence.EventFilter
	if after := parseQueryTime(values.Get("starts_after")); after != nil {
		filter.StartsAfter = after
	}
	if before := parseQueryTime(values.Get("ends_before")); before != nil {
		filter.EndsBefore = before
	}
	return filter
}

func parseQueryTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return &ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts
	}
	return nil
}

type subShiftRequest struct {
	ID       string `json:"id,omitempty"`
	RoleName string `json:"role_name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
}

type eventRequest struct {
	Title     string            `json:"title"`
	Start     string            `json:"start"`
	End       string            `json:"end"`
	Location  *string           `json:"location"`
	SubShifts []subShiftRequest `json:"sub_shifts"`
}

func (r eventRequest) toInput() application.EventInput {
	subShifts := make([]application.SubShiftInput, 0, len(r.SubShifts))
	for _, shift := range r.SubShifts {
		subShifts = append(subShifts, application.SubShiftInput{
			ID:       strings.TrimSpace(shift.ID),
			RoleName: strings.TrimSpace(shift.RoleName),
			Start:    parseTime(shift.Start),
			End:      parseTime(shift.End),
			Capacity: shift.Capacity,
		})
	}
	return application.EventInput{
		Title:     strings.TrimSpace(r.Title),
		Start:     parseTime(r.Start),
		End:       parseTime(r.End),
		Location:  r.Location,
		SubShifts: subShifts,
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type subShiftDTO struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	RoleName  string `json:"role_name"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Capacity  int    `json:"capacity"`
	Filled    int    `json:"filled"`
	Available int    `json:"available"`
}

type eventDTO struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Location  *string       `json:"location,omitempty"`
	SubShifts []subShiftDTO `json:"sub_shifts"`
	Capacity  int           `json:"capacity"`
	Filled    int           `json:"filled"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	subShifts := make([]subShiftDTO, 0, len(event.SubShifts))
	for _, shift := range event.SubShifts {
		subShifts = append(subShifts, subShiftDTO{
			ID:        shift.ID,
			EventID:   shift.EventID,
			RoleName:  shift.RoleName,
			Start:     shift.Start.UTC().Format(time.RFC3339Nano),
			End:       shift.End.UTC().Format(time.RFC3339Nano),
			Capacity:  shift.Capacity,
			Filled:    shift.Filled,
			Available: shift.Available,
		})
	}
	return eventDTO{
		ID:        event.ID,
		Title:     event.Title,
		Start:     event.Start.UTC().Format(time.RFC3339Nano),
		End:       event.End.UTC().Format(time.RFC3339Nano),
		Location:  event.Location,
		SubShifts: subShifts,
		Capacity:  event.Capacity,
		Filled:    event.Filled,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toEventDTOs(events []application.Event) []eventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}
