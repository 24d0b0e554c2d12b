package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// PreferenceInput captures caller provided notification settings.
type PreferenceInput struct {
	Enabled     bool
	LeadMinutes int
	Timezone    string
}

// PushSubscriptionInput captures a Web Push registration.
type PushSubscriptionInput struct {
	Endpoint  string
	P256dhKey string
	AuthKey   string
}

// PreferenceService manages per-user reminder settings and push
// subscriptions. Users may only touch their own records.
type PreferenceService struct {
	prefs       persistence.PreferenceRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPreferenceService wires dependencies for preference operations.
func NewPreferenceService(prefs persistence.PreferenceRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PreferenceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PreferenceService{prefs: prefs, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// Get returns the caller's notification preference, falling back to the
// defaults when none was ever saved.
func (s *PreferenceService) Get(ctx context.Context, principal Principal) (NotificationPreference, error) {
	if s == nil {
		return NotificationPreference{}, fmt.Errorf("PreferenceService is nil")
	}

	pref, err := s.prefs.GetPreference(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return DefaultPreference(principal.UserID), nil
		}
		return NotificationPreference{}, err
	}
	return toPreference(pref), nil
}

// Save validates and stores the caller's notification preference.
func (s *PreferenceService) Save(ctx context.Context, principal Principal, input PreferenceInput) (NotificationPreference, error) {
	if s == nil {
		return NotificationPreference{}, fmt.Errorf("PreferenceService is nil")
	}

	vErr := &ValidationError{}
	if input.LeadMinutes < 1 || input.LeadMinutes > 10080 {
		vErr.add("lead_minutes", "lead minutes must be between 1 and 10080")
	}
	timezone := strings.TrimSpace(input.Timezone)
	if timezone == "" {
		timezone = "UTC"
	} else if _, err := time.LoadLocation(timezone); err != nil {
		vErr.add("timezone", "must be a valid IANA timezone identifier")
	}
	if vErr.HasErrors() {
		return NotificationPreference{}, vErr
	}

	pref := persistence.NotificationPreference{
		UserID:      principal.UserID,
		Enabled:     input.Enabled,
		LeadMinutes: input.LeadMinutes,
		Timezone:    timezone,
		UpdatedAt:   s.now(),
	}
	if err := s.prefs.UpsertPreference(ctx, pref); err != nil {
		return NotificationPreference{}, mapRepoError(err)
	}
	return toPreference(pref), nil
}

// Subscribe registers a Web Push endpoint for the caller.
func (s *PreferenceService) Subscribe(ctx context.Context, principal Principal, input PushSubscriptionInput) error {
	if s == nil {
		return fmt.Errorf("PreferenceService is nil")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Endpoint) == "" {
		vErr.add("endpoint", "endpoint is required")
	}
	if strings.TrimSpace(input.P256dhKey) == "" {
		vErr.add("p256dh_key", "p256dh key is required")
	}
	if strings.TrimSpace(input.AuthKey) == "" {
		vErr.add("auth_key", "auth key is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	err := s.prefs.CreatePushSubscription(ctx, persistence.PushSubscription{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		Endpoint:  input.Endpoint,
		P256dhKey: input.P256dhKey,
		AuthKey:   input.AuthKey,
		CreatedAt: s.now(),
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		// Re-registering the same endpoint is harmless.
		return nil
	}
	return mapRepoError(err)
}

// Unsubscribe removes a previously registered endpoint.
func (s *PreferenceService) Unsubscribe(ctx context.Context, principal Principal, endpoint string) error {
	if s == nil {
		return fmt.Errorf("PreferenceService is nil")
	}
	return mapRepoError(s.prefs.DeletePushSubscription(ctx, principal.UserID, endpoint))
}
