package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// EventRepository implements persistence.EventRepository on SQLite.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository returns a repository bound to the supplied pool.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateEvent inserts an event together with its sub-shifts.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event, subShifts []persistence.SubShift) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, title, start_time, end_time, location, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			event.ID,
			event.Title,
			formatTime(event.Start),
			formatTime(event.End),
			nullableString(event.Location),
			formatTime(event.CreatedAt),
			formatTime(event.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		return insertSubShifts(ctx, tx, subShifts)
	})
}

// UpdateEvent rewrites the event, upserts the surviving sub-shifts, and
// removes the explicitly dropped ones. Sub-shift identity is preserved so
// assignments stay attached across edits.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event, subShifts []persistence.SubShift, removedSubShiftIDs []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE events SET title = ?, start_time = ?, end_time = ?, location = ?, updated_at = ? WHERE id = ?`,
			event.Title,
			formatTime(event.Start),
			formatTime(event.End),
			nullableString(event.Location),
			formatTime(event.UpdatedAt),
			event.ID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := requireRowAffected(result); err != nil {
			return err
		}

		for _, id := range removedSubShiftIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sub_shifts WHERE id = ? AND event_id = ?`, id, event.ID); err != nil {
				return mapError(err)
			}
		}

		for _, shift := range subShifts {
			result, err := tx.ExecContext(ctx,
				`UPDATE sub_shifts SET role_name = ?, start_time = ?, end_time = ?, capacity = ?, updated_at = ?
				 WHERE id = ? AND event_id = ?`,
				shift.RoleName,
				formatTime(shift.Start),
				formatTime(shift.End),
				shift.Capacity,
				formatTime(shift.UpdatedAt),
				shift.ID,
				event.ID,
			)
			if err != nil {
				return mapError(err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				if err := insertSubShifts(ctx, tx, []persistence.SubShift{shift}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, title, start_time, end_time, location, created_at, updated_at
		 FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListEvents returns events ordered by start time ascending.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT id, title, start_time, end_time, location, created_at, updated_at
		 FROM events WHERE 1=1`)
	args := make([]any, 0, 2)

	if filter.StartsAfter != nil {
		query.WriteString(" AND start_time >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		query.WriteString(" AND end_time <= ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	query.WriteString(" ORDER BY start_time, id")

	rows, err := r.pool.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteEvent removes an event. Sub-shifts, their assignments, and any swap
// requests go with it through the cascading foreign keys.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetSubShift retrieves a sub-shift by ID.
func (r *EventRepository) GetSubShift(ctx context.Context, id string) (persistence.SubShift, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, event_id, role_name, start_time, end_time, capacity, created_at, updated_at
		 FROM sub_shifts WHERE id = ?`, id)
	return scanSubShift(row)
}

// ListSubShiftsForEvents returns the sub-shifts belonging to the supplied
// events, ordered by (start_time, end_time) ascending.
func (r *EventRepository) ListSubShiftsForEvents(ctx context.Context, eventIDs []string) ([]persistence.SubShift, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, event_id, role_name, start_time, end_time, capacity, created_at, updated_at
		 FROM sub_shifts WHERE event_id IN (`+placeholders(len(eventIDs))+`)
		 ORDER BY start_time, end_time, id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	shifts := make([]persistence.SubShift, 0)
	for rows.Next() {
		shift, err := scanSubShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

func insertSubShifts(ctx context.Context, tx *sql.Tx, subShifts []persistence.SubShift) error {
	for _, shift := range subShifts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sub_shifts (id, event_id, role_name, start_time, end_time, capacity, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			shift.ID,
			shift.EventID,
			shift.RoleName,
			formatTime(shift.Start),
			formatTime(shift.End),
			shift.Capacity,
			formatTime(shift.CreatedAt),
			formatTime(shift.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var location sql.NullString
	var start, end, createdAt, updatedAt string
	if err := row.Scan(&event.ID, &event.Title, &start, &end, &location, &createdAt, &updatedAt); err != nil {
		return persistence.Event{}, mapError(err)
	}
	event.Location = fromNullString(location)
	var err error
	if event.Start, err = parseTime(start); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

func scanSubShift(row rowScanner) (persistence.SubShift, error) {
	var shift persistence.SubShift
	var start, end, createdAt, updatedAt string
	if err := row.Scan(&shift.ID, &shift.EventID, &shift.RoleName, &start, &end, &shift.Capacity, &createdAt, &updatedAt); err != nil {
		return persistence.SubShift{}, mapError(err)
	}
	var err error
	if shift.Start, err = parseTime(start); err != nil {
		return persistence.SubShift{}, err
	}
	if shift.End, err = parseTime(end); err != nil {
		return persistence.SubShift{}, err
	}
	if shift.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.SubShift{}, err
	}
	if shift.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.SubShift{}, err
	}
	return shift, nil
}
