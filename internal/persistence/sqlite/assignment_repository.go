package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// AssignmentRepository implements persistence.AssignmentRepository on SQLite.
type AssignmentRepository struct {
	pool *Pool
}

// NewAssignmentRepository returns a repository bound to the supplied pool.
func NewAssignmentRepository(pool *Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// CreateAssignment inserts an assignment after re-checking capacity inside
// the same transaction. The UNIQUE(sub_shift_id, user_id) constraint closes
// the duplicate sign-up race independently of the count query.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment persistence.ShiftAssignment) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var capacity int
		err := tx.QueryRowContext(ctx,
			`SELECT capacity FROM sub_shifts WHERE id = ?`, assignment.SubShiftID,
		).Scan(&capacity)
		if err != nil {
			return mapError(err)
		}

		// The duplicate check runs before the capacity comparison so a user
		// who already holds the shift is told so even when it is full.
		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM shift_assignments WHERE sub_shift_id = ? AND user_id = ?`,
			assignment.SubShiftID, assignment.UserID,
		).Scan(&existing)
		if err != nil {
			return mapError(err)
		}
		if existing > 0 {
			return persistence.ErrDuplicate
		}

		var filled int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM shift_assignments WHERE sub_shift_id = ?`, assignment.SubShiftID,
		).Scan(&filled)
		if err != nil {
			return mapError(err)
		}

		if filled >= capacity {
			return persistence.ErrCapacityExceeded
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO shift_assignments (id, sub_shift_id, user_id, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			assignment.ID,
			assignment.SubShiftID,
			assignment.UserID,
			assignment.Status,
			formatTime(assignment.CreatedAt),
			formatTime(assignment.UpdatedAt),
		)
		return mapError(err)
	})
}

// GetAssignment retrieves an assignment by ID.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (persistence.ShiftAssignment, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, sub_shift_id, user_id, status, created_at, updated_at
		 FROM shift_assignments WHERE id = ?`, id)
	return scanAssignment(row)
}

// UpdateAssignment rewrites the mutable columns of an assignment. The unique
// constraint still guards reassignments onto an already-assigned user.
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, assignment persistence.ShiftAssignment) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE shift_assignments SET user_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		assignment.UserID,
		assignment.Status,
		formatTime(assignment.UpdatedAt),
		assignment.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// DeleteAssignment removes an assignment. Swap requests referencing it are
// removed by the ON DELETE CASCADE foreign key.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM shift_assignments WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// ListAssignments returns assignments matching the filter ordered by the
// owning sub-shift's start time.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.ShiftAssignment, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT a.id, a.sub_shift_id, a.user_id, a.status, a.created_at, a.updated_at
		 FROM shift_assignments a
		 JOIN sub_shifts s ON s.id = a.sub_shift_id
		 WHERE 1=1`)
	args := make([]any, 0, 4)

	if filter.UserID != "" {
		query.WriteString(" AND a.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query.WriteString(" AND a.status = ?")
		args = append(args, filter.Status)
	}
	if len(filter.SubShiftIDs) > 0 {
		query.WriteString(" AND a.sub_shift_id IN (" + placeholders(len(filter.SubShiftIDs)) + ")")
		for _, id := range filter.SubShiftIDs {
			args = append(args, id)
		}
	}
	if filter.StartsAfter != nil {
		query.WriteString(" AND s.start_time >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	// StartsBefore is exclusive so adjacent scan windows never both match a
	// shift starting exactly on the boundary.
	if filter.StartsBefore != nil {
		query.WriteString(" AND s.start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	query.WriteString(" ORDER BY s.start_time, s.end_time, a.id")

	rows, err := r.pool.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	assignments := make([]persistence.ShiftAssignment, 0)
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// CountBySubShift returns the number of live assignments per sub-shift.
// Sub-shifts without assignments are absent from the result.
func (r *AssignmentRepository) CountBySubShift(ctx context.Context, subShiftIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(subShiftIDs))
	if len(subShiftIDs) == 0 {
		return counts, nil
	}

	args := make([]any, len(subShiftIDs))
	for i, id := range subShiftIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT sub_shift_id, COUNT(*) FROM shift_assignments
		 WHERE sub_shift_id IN (`+placeholders(len(subShiftIDs))+`)
		 GROUP BY sub_shift_id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (persistence.ShiftAssignment, error) {
	var assignment persistence.ShiftAssignment
	var createdAt, updatedAt string
	if err := row.Scan(&assignment.ID, &assignment.SubShiftID, &assignment.UserID, &assignment.Status, &createdAt, &updatedAt); err != nil {
		return persistence.ShiftAssignment{}, mapError(err)
	}
	var err error
	if assignment.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ShiftAssignment{}, err
	}
	if assignment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ShiftAssignment{}, err
	}
	return assignment, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	copied := value.String
	return &copied
}
