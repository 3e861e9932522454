package conflict

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/evcraddock/johap/internal/db"
)

// Repository stores conflicts.
type Repository struct {
	q db.Querier
}

// NewRepository creates a conflict repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const selectColumns = `id, union_id, property_unit_id, pending_user_id, existing_user_id, kind, status,
	action, note, resolved_by, resolved_at, created_at`

func scanConflict(row interface{ Scan(...interface{}) error }) (*Conflict, error) {
	var c Conflict
	var kind, status, action string
	var resolvedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.UnionID, &c.UnitID, &c.PendingUserID, &c.ExistingUserID, &kind, &status,
		&action, &c.Note, &c.ResolvedBy, &resolvedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Kind = Kind(kind)
	c.Status = Status(status)
	c.Action = Action(action)
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return &c, nil
}

// Open records an OPEN conflict unless one already exists for the unit,
// pending and existing member, whatever its status.
func (r *Repository) Open(unionID, unitID int64, pendingID, existingID string, kind Kind) error {
	result, err := r.q.Exec(`INSERT OR IGNORE INTO conflicts
		(union_id, property_unit_id, pending_user_id, existing_user_id, kind)
		VALUES (?, ?, ?, ?, ?)`,
		unionID, unitID, pendingID, existingID, string(kind),
	)
	if err != nil {
		return fmt.Errorf("inserting conflict: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		slog.Info("conflict detected", "union_id", unionID, "unit_id", unitID,
			"pending_user_id", pendingID, "existing_user_id", existingID, "kind", kind)
	}
	return nil
}

// Get returns a conflict by ID.
func (r *Repository) Get(id int64) (*Conflict, error) {
	c, err := scanConflict(r.q.QueryRow(
		fmt.Sprintf("SELECT %s FROM conflicts WHERE id = ?", selectColumns), id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying conflict %d: %w", id, err)
	}
	return c, nil
}

// List returns a union's conflicts, oldest first. An empty status returns
// all of them.
func (r *Repository) List(unionID int64, status Status) ([]*Conflict, error) {
	query := fmt.Sprintf("SELECT %s FROM conflicts WHERE union_id = ?", selectColumns)
	args := []interface{}{unionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, id"
	return r.list(query, args...)
}

// OpenForPending returns a registrant's OPEN conflicts.
func (r *Repository) OpenForPending(pendingID string) ([]*Conflict, error) {
	return r.list(
		fmt.Sprintf("SELECT %s FROM conflicts WHERE pending_user_id = ? AND status = 'OPEN' ORDER BY id", selectColumns),
		pendingID,
	)
}

// OpenForHolder returns OPEN conflicts on a unit naming the existing member.
func (r *Repository) OpenForHolder(unitID int64, existingID string) ([]*Conflict, error) {
	return r.list(
		fmt.Sprintf(`SELECT %s FROM conflicts
			WHERE property_unit_id = ? AND existing_user_id = ? AND status = 'OPEN' ORDER BY id`, selectColumns),
		unitID, existingID,
	)
}

// Close moves an OPEN conflict to a closed status.
func (r *Repository) Close(id int64, status Status, action Action, note, actorID string) error {
	result, err := r.q.Exec(`UPDATE conflicts
		SET status = ?, action = ?, note = ?, resolved_by = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'OPEN'`,
		string(status), string(action), note, actorID, id,
	)
	if err != nil {
		return fmt.Errorf("closing conflict: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrConflictClosed, id)
	}
	return nil
}

func (r *Repository) list(query string, args ...interface{}) ([]*Conflict, error) {
	rows, err := r.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var out []*Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
