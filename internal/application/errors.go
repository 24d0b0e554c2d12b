package application

import "errors"

var (
	// ErrUnauthorized is returned when no authenticated principal is present.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the acting principal lacks the role an
	// operation requires.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session token is past its TTL.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token has been revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// Conflict codes identify which state-machine precondition rejected a write.
const (
	ConflictAlreadyAssigned  = "already_assigned"
	ConflictCapacityExceeded = "capacity_exceeded"
	ConflictSwapNotOpen      = "swap_not_open"
	ConflictSwapAlreadyOpen  = "swap_already_open"
	ConflictAssignmentsExist = "assignments_exist"
	ConflictRoleUnchanged    = "role_unchanged"
	ConflictEmailTaken       = "email_taken"
)

// ConflictError reports a state-machine precondition violation with a
// machine-readable code and, when relevant, the entity IDs blocking the
// operation so the caller can re-confirm destructive actions.
type ConflictError struct {
	Code        string
	Message     string
	AffectedIDs []string
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	if c.Message != "" {
		return c.Message
	}
	return "conflict: " + c.Code
}

func newConflict(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

// IsConflict reports whether err is a ConflictError with the given code.
func IsConflict(err error, code string) bool {
	var cErr *ConflictError
	return errors.As(err, &cErr) && cErr.Code == code
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
