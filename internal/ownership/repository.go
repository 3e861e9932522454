package ownership

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/evcraddock/johap/internal/db"
)

// Repository provides access to ownerships and their event log.
type Repository struct {
	q db.Querier
}

// NewRepository creates an ownership repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const selectColumns = `id, property_unit_id, user_id, ownership_type, is_active, created_at, ended_at`

func scanOwnership(row interface{ Scan(...interface{}) error }) (*Ownership, error) {
	var o Ownership
	var typ string
	var endedAt sql.NullTime
	if err := row.Scan(&o.ID, &o.UnitID, &o.UserID, &typ, &o.Active, &o.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	o.Type = Type(typ)
	if endedAt.Valid {
		o.EndedAt = &endedAt.Time
	}
	return &o, nil
}

// Grant gives a member an active holding on a unit.
func (r *Repository) Grant(unitID int64, userID string, t Type) (*Ownership, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid ownership type: %q", t)
	}

	var n int
	if err := r.q.QueryRow(
		"SELECT COUNT(*) FROM ownerships WHERE property_unit_id = ? AND user_id = ? AND is_active = 1",
		unitID, userID,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("checking holdings: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: unit %d", ErrAlreadyHolder, unitID)
	}

	result, err := r.q.Exec(
		"INSERT INTO ownerships (property_unit_id, user_id, ownership_type) VALUES (?, ?, ?)",
		unitID, userID, string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting ownership: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	slog.Info("ownership granted", "unit_id", unitID, "user_id", userID, "type", t)
	return r.Get(id)
}

// Ensure gives a member an active holding of at least type t on a unit.
// A weaker holding the member already has is upgraded in place; a holding
// of equal or stronger type is returned unchanged.
func (r *Repository) Ensure(unitID int64, userID string, t Type) (*Ownership, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid ownership type: %q", t)
	}

	o, err := scanOwnership(r.q.QueryRow(
		fmt.Sprintf("SELECT %s FROM ownerships WHERE property_unit_id = ? AND user_id = ? AND is_active = 1", selectColumns),
		unitID, userID,
	))
	if err == sql.ErrNoRows {
		return r.Grant(unitID, userID, t)
	}
	if err != nil {
		return nil, fmt.Errorf("checking holdings: %w", err)
	}
	if !t.Outranks(o.Type) {
		return o, nil
	}

	if _, err := r.q.Exec(
		"UPDATE ownerships SET ownership_type = ? WHERE id = ?", string(t), o.ID,
	); err != nil {
		return nil, fmt.Errorf("upgrading ownership: %w", err)
	}

	slog.Info("ownership upgraded", "ownership_id", o.ID, "from", o.Type, "to", t)
	return r.Get(o.ID)
}

// Get returns an ownership by ID.
func (r *Repository) Get(id int64) (*Ownership, error) {
	o, err := scanOwnership(r.q.QueryRow(
		fmt.Sprintf("SELECT %s FROM ownerships WHERE id = ?", selectColumns), id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying ownership %d: %w", id, err)
	}
	return o, nil
}

// End deactivates an ownership.
func (r *Repository) End(id int64) error {
	result, err := r.q.Exec(
		"UPDATE ownerships SET is_active = 0, ended_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1", id,
	)
	if err != nil {
		return fmt.Errorf("ending ownership: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotActive, id)
	}

	slog.Info("ownership ended", "ownership_id", id)
	return nil
}

// Reassign moves every holding and logged event of one member to another.
// An active holding on a unit the target already holds is ended first, so
// it moves over as history and the target keeps a single active holding.
func (r *Repository) Reassign(fromUserID, toUserID string) (int64, error) {
	ended, err := r.q.Exec(`UPDATE ownerships SET is_active = 0, ended_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active = 1
		AND property_unit_id IN (
			SELECT property_unit_id FROM ownerships WHERE user_id = ? AND is_active = 1)`,
		fromUserID, toUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("ending duplicate holdings: %w", err)
	}
	if n, err := ended.RowsAffected(); err == nil && n > 0 {
		slog.Info("duplicate holdings ended", "user_id", fromUserID, "into", toUserID, "count", n)
	}

	result, err := r.q.Exec(
		"UPDATE ownerships SET user_id = ? WHERE user_id = ?", toUserID, fromUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("reassigning ownerships: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	if _, err := r.q.Exec(
		"UPDATE ownership_events SET user_id = ? WHERE user_id = ?", toUserID, fromUserID,
	); err != nil {
		return 0, fmt.Errorf("reassigning events: %w", err)
	}

	return moved, nil
}

// Record appends an event to a unit's history.
func (r *Repository) Record(unitID int64, userID string, e Event, note string) error {
	if !e.IsValid() {
		return fmt.Errorf("invalid ownership event: %q", e)
	}
	if _, err := r.q.Exec(
		"INSERT INTO ownership_events (property_unit_id, user_id, event, note) VALUES (?, ?, ?, ?)",
		unitID, userID, string(e), note,
	); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// ActiveByUnit returns a unit's active holdings, oldest first.
func (r *Repository) ActiveByUnit(unitID int64) ([]*Ownership, error) {
	return r.list(
		fmt.Sprintf("SELECT %s FROM ownerships WHERE property_unit_id = ? AND is_active = 1 ORDER BY created_at, id", selectColumns),
		unitID,
	)
}

// ActiveByUser returns a member's active holdings, oldest first.
func (r *Repository) ActiveByUser(userID string) ([]*Ownership, error) {
	return r.list(
		fmt.Sprintf("SELECT %s FROM ownerships WHERE user_id = ? AND is_active = 1 ORDER BY created_at, id", selectColumns),
		userID,
	)
}

func (r *Repository) list(query string, args ...interface{}) ([]*Ownership, error) {
	rows, err := r.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ownerships: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var out []*Ownership
	for rows.Next() {
		o, err := scanOwnership(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ownership: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Events returns a unit's history, newest first.
func (r *Repository) Events(unitID int64) ([]*Record, error) {
	rows, err := r.q.Query(
		`SELECT id, property_unit_id, user_id, event, note, created_at
		FROM ownership_events WHERE property_unit_id = ? ORDER BY created_at DESC, id DESC`,
		unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var out []*Record
	for rows.Next() {
		var rec Record
		var e string
		if err := rows.Scan(&rec.ID, &rec.UnitID, &rec.UserID, &e, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		rec.Event = Event(e)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
