package application

import (
	"errors"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return newConflict(ConflictAlreadyAssigned, "user already holds an assignment on this shift")
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return newConflict(ConflictCapacityExceeded, "shift is already at capacity")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	}
	return err
}
