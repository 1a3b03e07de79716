package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StepsForRecord returns a record's steps in ascending order.
func (s *Store) StepsForRecord(ctx context.Context, recordID int64) ([]*Step, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+stepColumns+` FROM steps WHERE record_id = ? ORDER BY step_order`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetStep fetches a step by identifier. Returns nil when absent.
func (s *Store) GetStep(ctx context.Context, id int64) (*Step, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return step, nil
}

// StepByType fetches a record's step of the given type. Returns nil when the
// record has no such step.
func (s *Store) StepByType(ctx context.Context, recordID int64, stepType StepType) (*Step, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+stepColumns+` FROM steps WHERE record_id = ? AND step_type = ?`,
		recordID,
		stepType,
	)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("step by type: %w", err)
	}
	return step, nil
}

// MoveStepStatus persists a transition only when the step still holds the
// expected status. Reports whether the write happened; a miss means another
// actor moved the step since the caller last observed it, typically an
// operator restart racing a finishing worker.
func (s *Store) MoveStepStatus(ctx context.Context, stepID int64, from, to Status, log string) (bool, error) {
	if _, ok := statusSet[to]; !ok {
		return false, fmt.Errorf("unknown status %q", to)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE steps SET status = ?, log = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		nullableString(log),
		time.Now().UTC().Format(time.RFC3339Nano),
		stepID,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("move step status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetStepStatus persists a status transition together with the step's log
// field in a single statement. The write is durable when this returns; the
// dispatcher relies on that ordering before it enqueues any follow-up work.
func (s *Store) SetStepStatus(ctx context.Context, stepID int64, status Status, log string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE steps SET status = ?, log = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(log),
		time.Now().UTC().Format(time.RFC3339Nano),
		stepID,
	)
	if err != nil {
		return fmt.Errorf("set step status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step %d not found", stepID)
	}
	return nil
}
