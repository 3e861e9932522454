package notice

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Repository provides CRUD operations for notices.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a notice repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, union_id, title, body, author_id, pinned, created_at, updated_at`

func scanNotice(row interface{ Scan(...interface{}) error }) (*Notice, error) {
	var n Notice
	var updatedAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UnionID, &n.Title, &n.Body, &n.AuthorID, &n.Pinned, &n.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		n.UpdatedAt = &updatedAt.Time
	}
	return &n, nil
}

// Add posts a notice to a union's board.
func (r *Repository) Add(unionID int64, title, body, authorID string, pinned bool) (*Notice, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrBodyRequired
	}

	result, err := r.db.Exec(
		"INSERT INTO notices (union_id, title, body, author_id, pinned) VALUES (?, ?, ?, ?, ?)",
		unionID, title, body, authorID, pinned,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting notice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	slog.Info("notice posted", "union_id", unionID, "notice_id", id)
	return r.Get(unionID, id)
}

// Get returns one of a union's notices.
func (r *Repository) Get(unionID, id int64) (*Notice, error) {
	n, err := scanNotice(r.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM notices WHERE id = ? AND union_id = ?", selectColumns), id, unionID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying notice %d: %w", id, err)
	}
	return n, nil
}

// ListByUnion returns a union's notices, pinned first, then newest first.
func (r *Repository) ListByUnion(unionID int64) ([]*Notice, error) {
	rows, err := r.db.Query(
		fmt.Sprintf("SELECT %s FROM notices WHERE union_id = ? ORDER BY pinned DESC, id DESC", selectColumns),
		unionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notices: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var notices []*Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notice: %w", err)
		}
		notices = append(notices, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notices: %w", err)
	}
	return notices, nil
}

// SetPinned pins or unpins a notice.
func (r *Repository) SetPinned(unionID, id int64, pinned bool) error {
	result, err := r.db.Exec(
		"UPDATE notices SET pinned = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND union_id = ?",
		pinned, id, unionID,
	)
	if err != nil {
		return fmt.Errorf("updating notice: %w", err)
	}
	return checkAffected(result, id)
}

// Delete removes one of a union's notices.
func (r *Repository) Delete(unionID, id int64) error {
	result, err := r.db.Exec("DELETE FROM notices WHERE id = ? AND union_id = ?", id, unionID)
	if err != nil {
		return fmt.Errorf("deleting notice: %w", err)
	}
	return checkAffected(result, id)
}

func checkAffected(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
