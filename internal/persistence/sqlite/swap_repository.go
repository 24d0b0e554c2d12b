package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/volunteer-coordinator/internal/persistence"
)

// SwapRepository implements persistence.SwapRepository on SQLite.
type SwapRepository struct {
	pool *Pool
}

// NewSwapRepository returns a repository bound to the supplied pool.
func NewSwapRepository(pool *Pool) *SwapRepository {
	return &SwapRepository{pool: pool}
}

// CreateSwap inserts a swap request and flips the underlying assignment to
// pending in one transaction, so no reader observes an open request whose
// assignment is still confirmed. The flip only matches a confirmed
// assignment; a second open on the same assignment finds it already pending
// and the whole transaction rolls back with ErrConstraintViolation.
func (r *SwapRepository) CreateSwap(ctx context.Context, swap persistence.SwapRequest) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO swap_requests (id, assignment_id, requester_id, status, accepted_by_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			swap.ID,
			swap.AssignmentID,
			swap.RequesterID,
			swap.Status,
			nullableString(swap.AcceptedByID),
			formatTime(swap.CreatedAt),
			formatTime(swap.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE shift_assignments SET status = 'pending', updated_at = ?
			 WHERE id = ? AND status = 'confirmed'`,
			formatTime(swap.UpdatedAt), swap.AssignmentID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM shift_assignments WHERE id = ?`, swap.AssignmentID,
			).Scan(&exists); err != nil {
				return mapError(err)
			}
			if exists == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrConstraintViolation
		}
		return nil
	})
}

// GetSwap retrieves a swap request by ID.
func (r *SwapRepository) GetSwap(ctx context.Context, id string) (persistence.SwapRequest, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, assignment_id, requester_id, status, accepted_by_id, created_at, updated_at
		 FROM swap_requests WHERE id = ?`, id)
	return scanSwap(row)
}

// DeclineSwap cancels an open request and reverts its assignment to
// confirmed in a single transaction. The status change is guarded on the
// request still being open, so a concurrent accept is never overwritten; a
// request that is no longer open rolls back with ErrConstraintViolation.
func (r *SwapRepository) DeclineSwap(ctx context.Context, swapID string, updatedAt time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var assignmentID string
		err := tx.QueryRowContext(ctx,
			`SELECT assignment_id FROM swap_requests WHERE id = ?`, swapID,
		).Scan(&assignmentID)
		if err != nil {
			return mapError(err)
		}

		stamp := formatTime(updatedAt)

		result, err := tx.ExecContext(ctx,
			`UPDATE swap_requests SET status = 'cancelled', updated_at = ?
			 WHERE id = ? AND status = 'open'`,
			stamp, swapID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrConstraintViolation
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE shift_assignments SET status = 'confirmed', updated_at = ? WHERE id = ?`,
			stamp, assignmentID,
		)
		return mapError(err)
	})
}

// ListOpenSwaps returns open swap requests, newest first.
func (r *SwapRepository) ListOpenSwaps(ctx context.Context) ([]persistence.SwapRequest, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, assignment_id, requester_id, status, accepted_by_id, created_at, updated_at
		 FROM swap_requests WHERE status = 'open'
		 ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	swaps := make([]persistence.SwapRequest, 0)
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

// AcceptSwap reassigns the underlying assignment to acceptedByID and marks
// the request accepted in a single transaction. A request that is no longer
// open, or an acceptedBy user already holding a live assignment on the same
// sub-shift, rolls the whole operation back.
func (r *SwapRepository) AcceptSwap(ctx context.Context, swapID, acceptedByID string, updatedAt time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var assignmentID, status string
		err := tx.QueryRowContext(ctx,
			`SELECT assignment_id, status FROM swap_requests WHERE id = ?`, swapID,
		).Scan(&assignmentID, &status)
		if err != nil {
			return mapError(err)
		}
		if status != "open" {
			return persistence.ErrConstraintViolation
		}

		stamp := formatTime(updatedAt)

		// The UNIQUE(sub_shift_id, user_id) constraint rejects the update
		// when acceptedByID already holds an assignment on the sub-shift.
		result, err := tx.ExecContext(ctx,
			`UPDATE shift_assignments SET user_id = ?, status = 'confirmed', updated_at = ? WHERE id = ?`,
			acceptedByID, stamp, assignmentID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := requireRowAffected(result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE swap_requests SET status = 'accepted', accepted_by_id = ?, updated_at = ? WHERE id = ?`,
			acceptedByID, stamp, swapID,
		)
		return mapError(err)
	})
}

func scanSwap(row rowScanner) (persistence.SwapRequest, error) {
	var swap persistence.SwapRequest
	var acceptedBy sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&swap.ID, &swap.AssignmentID, &swap.RequesterID, &swap.Status, &acceptedBy, &createdAt, &updatedAt); err != nil {
		return persistence.SwapRequest{}, mapError(err)
	}
	swap.AcceptedByID = fromNullString(acceptedBy)
	var err error
	if swap.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	if swap.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	return swap, nil
}
